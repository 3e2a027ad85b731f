// Command web_sock_test starts the UI Bridge's websocket transport and
// confirms it accepts a connection and can broadcast a message (spec §6
// "one runs a websocket server test"). Grounded on the same pflag CLI
// shape as cmd/mt_queue.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"

	"github.com/currawong-project/libcw-sub004/internal/config"
	"github.com/currawong-project/libcw-sub004/internal/flow/graph"
	"github.com/currawong-project/libcw-sub004/internal/flow/uibridge"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
	"github.com/currawong-project/libcw-sub004/internal/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("web_sock_test", pflag.ContinueOnError)
	help := fs.BoolP("help", "h", false, "display help text")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: web_sock_test [options] <cfg>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help {
		fs.Usage()
		return 0
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	cfg, err := loadCfg(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "web_sock_test: %v\n", err)
		return 1
	}

	if err := runWebsocketTest(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "web_sock_test: %v\n", err)
		return 1
	}
	fmt.Println("web_sock_test: OK")
	return 0
}

func loadCfg(path string) (*config.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return config.Parse(string(data))
}

func pathFromCfg(n *config.Node) string {
	p := "/ui"
	if n == nil {
		return p
	}
	if v, ok := n.Get("path"); ok && v.Kind == config.KindString {
		p = v.Str
	}
	return p
}

// runWebsocketTest stands up a WebsocketTransport on a loopback port,
// connects a client to it, broadcasts one UI message through a Bridge,
// and verifies the client receives it within a short deadline.
func runWebsocketTest(cfg *config.Node) error {
	logger := telemetry.NewLogger(log.InfoLevel)
	transport := ui.NewWebsocketTransport(logger, nil)
	mux := http.NewServeMux()
	urlPath := pathFromCfg(cfg)
	mux.Handle(urlPath, transport)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Close()

	wsURL := fmt.Sprintf("ws://%s%s", ln.Addr().String(), urlPath)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	// Give the server's accept-and-register goroutine a moment to finish
	// registering the connection before the bridge broadcasts.
	deadline := time.Now().Add(2 * time.Second)
	for transport.ClientCount() == 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("server never registered the client connection")
		}
		time.Sleep(5 * time.Millisecond)
	}

	bridge := uibridge.New(transport)
	v := &graph.Variable{Label: "probe", UI: &graph.UIDescriptor{WidgetID: 1, Enabled: true}}
	if err := bridge.OnAssign(v); err != nil {
		return fmt.Errorf("bridge broadcast: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("client read: %w", err)
	}
	if len(msg) == 0 {
		return fmt.Errorf("received empty UI message")
	}
	return nil
}
