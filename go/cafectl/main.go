package main

import (
	"github.com/jessevdk/go-flags"
	mbp "go.gazette.dev/core/mainboilerplate"
)

const iniFilename = "cafe.ini"

func main() {
	var parser = flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	addCmd(parser, "serve", "Serve the cafe", `
Serve the cafe until signaled to exit (via SIGTERM). Customer sessions are
accepted on the configured port, their items are brewed under per-category
capacity limits, and completed orders are announced back to their customers.
No state persists across restarts: on exit, un-collected orders are discarded.
`, &cmdServe{})

	addCmd(parser, "order", "Order from a cafe as a customer", `
Connect to a cafe server, place an order, and interact with the barista:
check order status, collect completed orders, place further orders, or leave.
`, &cmdOrder{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}

func addCmd(to interface {
	AddCommand(string, string, string, interface{}) (*flags.Command, error)
}, a, b, c string, iface interface{}) *flags.Command {
	var cmd, err = to.AddCommand(a, b, c, iface)
	mbp.Must(err, "failed to add flags parser command")
	return cmd
}
