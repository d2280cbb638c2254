// Package admin implements the interactive admin console described in
// spec.md §1/§4.I: a thin line-oriented command parser over stdin,
// invoking internal/roomstate's library functions. Out of core scope per
// spec.md §1, included as ambient wiring so cmd/bonkroomd is a real
// runnable program, grounded on the teacher's examples/js-chat/main.go
// wiring style (a small command dispatch table built around the room's
// public methods).
package admin

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bonkroom/server/internal/roomstate"
)

// Console reads line-oriented commands from r and dispatches them to room.
type Console struct {
	room *roomstate.Engine
	out  io.Writer
}

// New returns a Console bound to room, writing command output to out.
func New(room *roomstate.Engine, out io.Writer) *Console {
	return &Console{room: room, out: out}
}

// Run reads commands from r until EOF or r returns an error.
func (c *Console) Run(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.dispatch(line)
	}
}

func (c *Console) dispatch(line string) {
	fields := strings.Fields(line)
	cmd, rest := fields[0], fields[1:]

	switch cmd {
	case "help":
		c.printHelp()

	case "players":
		for _, p := range c.room.ListPlayers() {
			host := ""
			if p.Host {
				host = " (host)"
			}
			fmt.Fprintf(c.out, "%d: %s team=%d%s\n", p.ID, p.UserName, p.Team, host)
		}

	case "kick":
		c.withID(rest, func(id int) {
			if err := c.room.KickByID(id); err != nil {
				fmt.Fprintln(c.out, "kick failed:", err)
			}
		})

	case "ban":
		c.withID(rest, func(id int) {
			if err := c.room.BanByID(id); err != nil {
				fmt.Fprintln(c.out, "ban failed:", err)
			}
		})

	case "unban":
		if len(rest) != 1 {
			fmt.Fprintln(c.out, "usage: unban <username>")
			return
		}
		found, err := c.room.Unban(rest[0])
		if err != nil {
			fmt.Fprintln(c.out, "unban failed:", err)
			return
		}
		if !found {
			fmt.Fprintln(c.out, "no such username in the ban list")
		}

	case "transferhost":
		c.withID(rest, func(id int) {
			if err := c.room.TransferHost(id); err != nil {
				fmt.Fprintln(c.out, "transferhost failed:", err)
			}
		})

	case "roomname":
		if len(rest) < 1 {
			fmt.Fprintln(c.out, "usage: roomname <name...>")
			return
		}
		c.room.SetRoomName(strings.Join(rest, " "))

	case "password":
		if len(rest) == 0 {
			c.room.SetPassword("")
			return
		}
		c.room.SetPassword(strings.Join(rest, " "))

	case "savechatlog":
		path, err := c.room.SaveChatLog()
		if err != nil {
			fmt.Fprintln(c.out, "savechatlog failed:", err)
			return
		}
		if path == "" {
			fmt.Fprintln(c.out, "nothing to save")
			return
		}
		fmt.Fprintln(c.out, "saved", path)

	case "close":
		minutes := 0
		if len(rest) == 1 {
			n, err := strconv.Atoi(rest[0])
			if err != nil {
				fmt.Fprintln(c.out, "usage: close [minutes]")
				return
			}
			minutes = n
		}
		c.room.ScheduledClose(minutes, func() {
			log.Warn().Msg("scheduled close force-stop timer fired with players still connected")
		})

	case "abortclose":
		c.room.AbortScheduledClose()

	default:
		fmt.Fprintf(c.out, "unknown command %q; type 'help' for a list\n", cmd)
	}
}

func (c *Console) withID(args []string, fn func(id int)) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "usage: <command> <playerId>")
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintln(c.out, "player id must be an integer")
		return
	}
	fn(id)
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `commands:
  players                  list connected players
  kick <id>                disconnect a player
  ban <id>                 ban and disconnect a player
  unban <username>         remove a username from the ban list
  transferhost <id|-1>     transfer (or strip) the host
  roomname <name...>       set the room's display name
  password [password]      set (or clear, with no argument) the room password
  savechatlog              flush the chat log to disk
  close [minutes]          stop accepting joins; optional force-stop delay
  abortclose               reopen the room to new joins
`)
}
