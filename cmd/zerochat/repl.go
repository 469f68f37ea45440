package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/zerochat/zerochat/internal/client"
	"github.com/zerochat/zerochat/internal/config"
	"github.com/zerochat/zerochat/internal/history"
	"github.com/zerochat/zerochat/internal/ledger"
)

// runREPL reads lines from stdin: plain text is sent as a chat message,
// /commands drive the account.
func runREPL(cl *client.Client, sigCh chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sigCh
		cancel()
	}()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		model := cl.Session().Model()
		fmt.Printf("zerochat — chatting with %s (%s %s per request)\n", model.Name, model.CostPerRequest, config.Currency)
		fmt.Println("Type a message, or /help for commands.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, cl, line); quit {
				return nil
			}
			continue
		}

		sendLine(ctx, cl, line)
	}
}

func sendLine(ctx context.Context, cl *client.Client, text string) {
	fmt.Printf("  est. cost: ~%s %s\n", cl.Session().EstimateCost(text), config.Currency)

	ex, err := cl.SendMessage(ctx, text)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			fmt.Printf("  insufficient funds — top up with /fund <amount> (balance: %s %s)\n",
				cl.GetBalance().Available, config.Currency)
		default:
			fmt.Printf("  send failed (no charge, your message is kept): %v\n", err)
		}
		return
	}

	verified := ""
	if ex.Reply.Verified {
		verified = " [verified]"
	}
	fmt.Printf("\n%s%s\n  cost: %s %s (reserved %s)\n\n", ex.Reply.Content, verified, ex.Cost, config.Currency, ex.Estimate)
}

// runCommand executes one /command; returns true when the REPL should exit.
func runCommand(ctx context.Context, cl *client.Client, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		fmt.Print(`Commands:
  /models            List available models
  /model <id>        Select the active model
  /balance           Show tracked balance
  /fund <amount>     Add funds to the prepaid account
  /refresh           Reconcile balance with the network
  /history           Show transaction history and usage totals
  /stats             Show network status and client metrics
  /export [path]     Export the conversation as JSON
  /clear             Clear the conversation
  /quit              Exit
`)

	case "/models":
		for _, m := range cl.ListModels() {
			fmt.Printf("  %-24s %s — %s %s/request, %s\n", m.ID, m.Name, m.CostPerRequest, config.Currency, m.Verifiability)
		}

	case "/model":
		if len(args) != 1 {
			fmt.Println("  usage: /model <id>")
			break
		}
		if err := cl.SelectModel(args[0]); err != nil {
			fmt.Printf("  %v\n", err)
			break
		}
		fmt.Printf("  now chatting with %s\n", args[0])

	case "/balance":
		b := cl.GetBalance()
		fmt.Printf("  available: %s %s, locked: %s %s\n", b.Available, config.Currency, b.Locked, config.Currency)

	case "/fund":
		if len(args) != 1 {
			fmt.Println("  usage: /fund <amount>")
			break
		}
		amount, err := decimal.NewFromString(args[0])
		if err != nil {
			fmt.Printf("  invalid amount %q\n", args[0])
			break
		}
		b, err := cl.Fund(ctx, amount)
		if err != nil {
			fmt.Printf("  funding failed: %v\n", err)
			break
		}
		fmt.Printf("  added %s %s, available: %s %s\n", amount, config.Currency, b.Available, config.Currency)

	case "/refresh":
		b, err := cl.Refresh(ctx)
		if err != nil {
			fmt.Printf("  %v (keeping last known balance)\n", err)
			break
		}
		fmt.Printf("  reconciled, available: %s %s\n", b.Available, config.Currency)

	case "/history":
		printHistory(cl)

	case "/stats":
		printStats(cl)

	case "/export":
		path := "zerochat-history.json"
		if len(args) == 1 {
			path = args[0]
		}
		data, err := cl.ExportSession()
		if err != nil {
			fmt.Printf("  export failed: %v\n", err)
			break
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Printf("  export failed: %v\n", err)
			break
		}
		fmt.Printf("  exported to %s\n", path)

	case "/clear":
		cl.ClearSession()
		fmt.Println("  conversation cleared")

	case "/quit", "/exit":
		return true

	default:
		fmt.Printf("  unknown command %s (try /help)\n", cmd)
	}
	return false
}

func printHistory(cl *client.Client) {
	txs, err := cl.GetHistory()
	if err != nil {
		fmt.Printf("  history unavailable: %v\n", err)
		return
	}
	if len(txs) == 0 {
		fmt.Println("  no transactions yet")
		return
	}

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 40 {
		width = w
	}
	descWidth := width - 50
	if descWidth < 10 {
		descWidth = 10
	}

	for _, tx := range txs {
		sign := "+"
		if tx.Kind == history.KindUsage {
			sign = "-"
		}
		desc := tx.Description
		if len(desc) > descWidth {
			desc = desc[:descWidth-3] + "..."
		}
		fmt.Printf("  %s  %s%-12s %-9s %s\n",
			tx.Timestamp.Format("2006-01-02 15:04:05"), sign, tx.Amount, tx.Status, desc)
	}

	totals, err := cl.GetUsageTotals()
	if err != nil {
		return
	}
	ratio := totals.UsageRatio().Mul(decimal.NewFromInt(100))
	fmt.Printf("  totals: deposits %s %s, usage %s %s (%s%% used)\n",
		totals.Deposits, config.Currency, totals.Usage, config.Currency, ratio.StringFixed(1))
}

func printStats(cl *client.Client) {
	ns := cl.NetworkStats()
	if ns.Connected {
		fmt.Printf("  network: block %d, latency %dms, %d providers, %d total requests\n",
			ns.BlockHeight, ns.LatencyMillis, ns.ActiveProviders, ns.TotalRequests)
	} else {
		fmt.Printf("  network: no status received, %d providers known\n", ns.ActiveProviders)
	}

	m := cl.Metrics()
	fmt.Printf("  client: %d sends (%d settled, %d failed), %d deposits, %d in / %d out tokens, up %s\n",
		m.Requests, m.Settled, m.Failed, m.Deposits, m.InputTokens, m.OutputTokens, m.Uptime.Round(time.Second))
}
