// Command oblivion is the reference CLI driver: serve a router, or
// exercise a running server with bench/socket/callback client runs.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oblivion-proto/oblivion"
	"github.com/oblivion-proto/oblivion/common/log"
	"github.com/oblivion-proto/oblivion/router"
)

var (
	host      string
	port      int
	maxHeader uint32
	maxChunk  uint32
)

func main() {
	root := &cobra.Command{
		Use:   "oblivion",
		Short: "Oblivion end-to-end-encrypted session protocol reference driver",
	}
	root.PersistentFlags().StringVar(&host, "host", "127.0.0.1", "host to bind or connect to")
	root.PersistentFlags().IntVar(&port, "port", 7076, "port to bind or connect to")
	root.PersistentFlags().Uint32Var(&maxHeader, "max-header", 0, "max request header length in bytes (0 = default)")
	root.PersistentFlags().Uint32Var(&maxChunk, "max-chunk", 0, "max OED chunk length in bytes (0 = default)")

	root.AddCommand(serveCmd(), benchCmd(), socketCmd(), callbackCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString(err.Error()))
		os.Exit(1)
	}
}

func limits() oblivion.Limits {
	return oblivion.Limits{MaxHeaderLength: maxHeader, MaxChunkLength: maxChunk}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run an Oblivion server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := defaultRouter()
			srv := oblivion.NewServer(host, port, rt).WithLimits(limits())
			return srv.Run()
		},
	}
}

func entranceArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "/welcome"
}

func benchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench [entrance]",
		Short: "repeatedly connect and time the round trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			entrance := entranceArg(args)
			endpoint := fmt.Sprintf("oblivion://%s:%d%s", host, port, entrance)
			for {
				start := time.Now()
				client, err := oblivion.Dial(endpoint, limits())
				if err != nil {
					return err
				}
				if _, err := client.Receive(); err != nil {
					return err
				}
				_ = client.Close()
				fmt.Printf("%s %s\n", color.CyanString("round-trip"), time.Since(start))
			}
		},
	}
}

func socketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "socket [entrance]",
		Short: "one send/receive smoke run against a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			entrance := entranceArg(args)
			endpoint := fmt.Sprintf("oblivion://%s:%d%s", host, port, entrance)
			client, err := oblivion.Dial(endpoint, limits())
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Send([]byte("ping")); err != nil {
				return err
			}
			resp, err := client.Receive()
			if err != nil {
				return err
			}
			text, err := resp.Text()
			if err != nil {
				return err
			}
			fmt.Println(color.GreenString(text))
			return nil
		},
	}
}

func callbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "callback [entrance]",
		Short: "drive the server's full-duplex handler",
		RunE: func(cmd *cobra.Command, args []string) error {
			entrance := "/alive"
			if len(args) > 0 {
				entrance = args[0]
			}
			endpoint := fmt.Sprintf("oblivion://%s:%d%s", host, port, entrance)
			client, err := oblivion.Dial(endpoint, limits())
			if err != nil {
				return err
			}
			defer client.Close()

			if _, err := client.Receive(); err != nil {
				return err
			}
			if err := client.Send([]byte("test")); err != nil {
				return err
			}
			var payload map[string]interface{}
			if err := client.ReceiveJSON(&payload); err != nil {
				return err
			}
			out, _ := json.Marshal(payload)
			fmt.Println(color.GreenString(string(out)))
			return nil
		},
	}
}

func defaultRouter() *router.Router {
	rt := router.New()
	rt.Handle(router.MustRoutePath("/welcome", router.Literal), welcomeHandler)
	rt.Handle(router.MustRoutePath("/json", router.Literal), jsonHandler)
	rt.Handle(router.MustRoutePath("/alive", router.Literal), aliveHandler)
	return rt
}

func welcomeHandler(s router.Session) ([]byte, error) {
	log.Debugf("welcome: serving %s", s.PeerAddr())
	return []byte(fmt.Sprintf("welcome, friend from %s", s.PeerAddr())), nil
}

func jsonHandler(s router.Session) ([]byte, error) {
	return json.Marshal(map[string]interface{}{"status": true, "msg": "ok"})
}

func aliveHandler(s router.Session) ([]byte, error) {
	if err := s.Send([]byte("test")); err != nil {
		return nil, err
	}
	resp, err := s.Receive()
	if err != nil {
		return nil, err
	}
	if string(resp.Bytes()) != "test" {
		return nil, fmt.Errorf("oblivion: alive handler: unexpected echo %q", resp.Bytes())
	}
	return json.Marshal(map[string]interface{}{"status": true, "msg": "done"})
}
