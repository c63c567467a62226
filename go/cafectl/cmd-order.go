package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/baristanet/cafe/go/cafe"
	"github.com/baristanet/cafe/go/client"
	"github.com/baristanet/cafe/go/protocol"
	"github.com/fatih/color"
	mbp "go.gazette.dev/core/mainboilerplate"
)

type cmdOrder struct {
	Cafe struct {
		Address string `long:"address" env:"ADDRESS" default:"localhost:8888" description:"Address of the cafe server"`
		Name    string `long:"name" env:"NAME" description:"Your display name (prompted for if unset)"`
		ID      int    `long:"id" env:"ID" description:"Customer id (random if unset)"`
	} `group:"Cafe" namespace:"cafe" env-namespace:"CAFE"`

	Log mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
}

var (
	baristaSays  = color.New(color.FgGreen)
	notification = color.New(color.FgYellow, color.Bold)
)

func (cmd *cmdOrder) Execute(_ []string) error {
	mbp.InitLog(cmd.Log)

	var stdin = bufio.NewScanner(os.Stdin)
	welcome()

	var items []cafe.Item
	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return stdin.Err()
		}
		var parsed, err = cafe.ParseOrderLine(stdin.Text())
		if err != nil {
			baristaSays.Println("Sorry, I don't understand that order. Try: order 2 tea and 1 coffee")
			continue
		}
		items = parsed
		break
	}

	var name = cmd.Cafe.Name
	for name == "" {
		baristaSays.Println("Great! What's your name so I can get this order started for you?")
		fmt.Print("> ")
		if !stdin.Scan() {
			return stdin.Err()
		}
		name = strings.TrimSpace(stdin.Text())
	}

	var id = cmd.Cafe.ID
	if id == 0 {
		id = rand.Intn(1_000_000) + 1
	}

	var c, err = client.Dial(cmd.Cafe.Address)
	if err != nil {
		return err
	}
	defer c.Close()

	if err = c.Connect(cafe.Customer{Name: name, ID: id, Items: items}); err != nil {
		return fmt.Errorf("placing order: %w", err)
	}
	baristaSays.Printf("We have placed your order, please standby, %s\n", name)

	// Surface asynchronous notifications as they arrive.
	go func() {
		for note := range c.Notifications() {
			notification.Println(note)
		}
	}()

	for {
		baristaSays.Println("Options: --|order status|--  --|collect|--  --|order <items>|--  --|exit|--")
		fmt.Print("> ")
		if !stdin.Scan() {
			return stdin.Err()
		}
		var command = strings.TrimSpace(stdin.Text())

		switch {
		case strings.EqualFold(command, "order status"):
			var status, err = c.OrderStatus()
			if err != nil {
				return err
			}
			fmt.Println(status)

		case strings.EqualFold(command, "collect"):
			var verdict, err = c.Collect()
			if err != nil {
				return err
			}
			switch verdict {
			case protocol.RespCollectReady:
				baristaSays.Println("Thank you and have a nice day :)")
			case protocol.RespCollectNotReady:
				baristaSays.Println("Your order is not ready for collection yet.")
			default:
				baristaSays.Println("No order found. Have you ordered anything?")
			}

		case strings.EqualFold(command, "exit"):
			return c.Terminate()

		case strings.HasPrefix(strings.ToLower(command), "order "):
			var items, err = cafe.ParseOrderLine(command)
			if err != nil {
				baristaSays.Println("Sorry, I don't understand that order. Try: order 2 tea and 1 coffee")
				continue
			}
			if err = c.NewOrder(items); err != nil {
				return err
			}
			baristaSays.Println("Coming right up!")

		default:
			baristaSays.Println("I didn't catch that.")
		}
	}
}

func welcome() {
	baristaSays.Println(`     ________________________
    /                        \
   | Hello! Welcome to the    |
   | cafe, what can I get     |
   | you?                     |
    \________________________/
              |
              |
         .-""""-.
        /        \
       |  ^    ^  |
       |     <    |
       |   \___/  |
        \        /
         '------'`)
	baristaSays.Println("Try: order 2 tea and 1 coffee")
}
