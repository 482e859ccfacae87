// Package main provides a RADIUS authentication client CLI.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Tony1928/eradius"
)

type cli struct {
	Server        []string      `short:"s" required:"" help:"RADIUS server address (host:port). May be repeated; servers are tried in order."`
	Secret        string        `required:"" env:"RADIUS_SECRET" help:"Shared secret, applied to every server."`
	Username      string        `short:"u" required:"" help:"Username to authenticate."`
	Password      string        `short:"p" env:"RADIUS_PASSWORD" help:"Password. Prompted on stdin when omitted."`
	NASIdentifier string        `name:"nas-identifier" help:"NAS-Identifier attribute value."`
	NASIPAddress  string        `name:"nas-ip" help:"NAS-IP-Address attribute value."`
	Timeout       time.Duration `default:"5s" help:"Reply timeout per server."`
	Verbose       bool          `short:"v" help:"Enable debug logging."`
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags,
		kong.Name("radius-client"),
		kong.Description("Authenticate a user against one or more RADIUS servers."),
		kong.UsageOnError(),
	)

	level := slog.LevelWarn
	if flags.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	servers, err := parseServers(flags.Server, flags.Secret)
	kctx.FatalIfErrorf(err)

	opts := []eradius.ClientOption{
		eradius.WithTimeout(flags.Timeout),
		eradius.WithLogger(logger),
	}
	if flags.NASIdentifier != "" {
		opts = append(opts, eradius.WithNASIdentifier(flags.NASIdentifier))
	}
	if flags.NASIPAddress != "" {
		ip := net.ParseIP(flags.NASIPAddress)
		if ip == nil {
			kctx.Fatalf("invalid NAS IP address: %s", flags.NASIPAddress)
		}
		opts = append(opts, eradius.WithNASIPAddress(ip))
	}

	client := eradius.NewClient(opts...)
	stdin := bufio.NewReader(os.Stdin)

	password := flags.Password
	if password == "" {
		password, err = prompt(stdin, "Password: ")
		kctx.FatalIfErrorf(err)
	}

	req := &eradius.AuthRequest{
		Username: flags.Username,
		Password: password,
		Servers:  servers,
	}

	for {
		outcome, err := client.Authenticate(context.Background(), req)
		kctx.FatalIfErrorf(err)

		switch {
		case outcome.IsAccept():
			fmt.Println("Authentication: ACCEPT")
			if outcome.ReplyMessage != "" {
				fmt.Printf("Server message: %s\n", outcome.ReplyMessage)
			}
			os.Exit(0)

		case outcome.IsChallenge():
			response, err := prompt(stdin, challengePrompt(outcome.ReplyMessage))
			kctx.FatalIfErrorf(err)
			req = &eradius.AuthRequest{
				Username:     flags.Username,
				Password:     response,
				Servers:      servers,
				Continuation: outcome.Continuation,
			}

		default:
			fmt.Printf("Authentication: REJECT (%s)\n", outcome.Reason)
			if outcome.ReplyMessage != "" {
				fmt.Printf("Server message: %s\n", outcome.ReplyMessage)
			}
			os.Exit(1)
		}
	}
}

func parseServers(addrs []string, secret string) ([]eradius.ServerCandidate, error) {
	servers := make([]eradius.ServerCandidate, 0, len(addrs))
	for _, addr := range addrs {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
		}
		port, err := net.LookupPort("udp", portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid server port %q: %w", portStr, err)
		}
		servers = append(servers, eradius.ServerCandidate{
			Address: host,
			Port:    port,
			Secret:  []byte(secret),
		})
	}
	return servers, nil
}

func challengePrompt(replyMessage string) string {
	if replyMessage == "" {
		return "Challenge response: "
	}
	return replyMessage + " "
}

func prompt(r *bufio.Reader, text string) (string, error) {
	fmt.Print(text)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
