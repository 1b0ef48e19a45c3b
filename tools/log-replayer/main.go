// Command log-replayer replays a captured workload log into a target file at
// a controlled rate, for exercising the monitor's file source end to end.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"
)

func main() {
	source := flag.String("source", "", "captured log file to replay")
	target := flag.String("target", "replay.log", "file the monitor is tailing")
	lps := flag.Float64("lps", 50, "lines per second to emit")
	flag.Parse()

	if *source == "" {
		fmt.Fprintln(os.Stderr, "usage: log-replayer -source captured.log [-target replay.log] [-lps 50]")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := replay(ctx, *source, *target, *lps); err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(1)
	}
}

func replay(ctx context.Context, source, target string, lps float64) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	limiter := rate.NewLimiter(rate.Limit(lps), 1)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var emitted int
	for scanner.Scan() {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, scanner.Text()); err != nil {
			return err
		}
		emitted++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("replayed %d lines into %s\n", emitted, target)
	return nil
}
