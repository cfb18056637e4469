// Command sync_smoke logs into a running kurspanel server, drives a sync
// session over the wire, and prints what it sees. Useful for eyeballing the
// push channels end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kurspanel/kurspanel-server/internal/catalog"
	"github.com/kurspanel/kurspanel-server/internal/core"
	"github.com/kurspanel/kurspanel-server/internal/log"
	"github.com/kurspanel/kurspanel-server/internal/store/remote"
)

func main() {
	if err := run(); err != nil {
		stdlog.Printf("sync_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	school := flag.String("school", "", "school id to log in as")
	password := flag.String("password", "", "school password")
	message := flag.String("message", "", "optional chat message to send after login")
	watch := flag.Duration("watch", 10*time.Second, "how long to watch for pushed updates")
	flag.Parse()

	if *school == "" || *password == "" {
		return fmt.Errorf("both -school and -password are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New("info")

	client, me, err := remote.Login(ctx, *addr, *school, *password, logger)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Printf("logged in as %s (%s)\n", me.Name, me.ID)

	session := core.NewSession(client, catalog.Default(), core.DefaultWindow, logger)
	if err := session.Activate(ctx); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	defer session.Deactivate()
	session.Select(*me)

	printState(session)

	if *message != "" {
		if err := session.RequestSendMessage(me.ID, me.Name, *message); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		fmt.Printf("sent: %q\n", *message)
	}

	fmt.Printf("watching for updates for %s (ctrl-c to stop early)\n", *watch)
	deadline := time.NewTimer(*watch)
	defer deadline.Stop()
	tick := time.NewTicker(2 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			printState(session)
			return nil
		case <-tick.C:
			printState(session)
		case failure := <-session.Failures():
			fmt.Printf("async failure: %v\n", failure)
		}
	}
}

func printState(session *core.Session) {
	report := session.Report()
	fmt.Printf("-- %d schools, %d candidates, %d TL total fee\n",
		len(report.Rows), report.TotalCandidates, report.TotalFee)
	for _, row := range report.Rows {
		fmt.Printf("   %-20s total=%-4d fee=%d TL\n", row.School.Name, row.Total, row.Fee)
	}
	msgs := session.Messages()
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		fmt.Printf("   last message: [%s] %s: %s\n",
			last.Timestamp.Format(time.RFC3339), last.SchoolName, last.Content)
	}
	if err := session.Err(); err != nil {
		fmt.Printf("   session error: %v\n", err)
	}
}
