package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isSignedIn() bool
	flushNotes()
	SignUp(ctx context.Context) error
	SignIn(ctx context.Context) error
	SignInWith(ctx context.Context, provider string) error
	Confirm(ctx context.Context, token string) error
	Resend(ctx context.Context) error
	Show(ctx context.Context) error
	Users(ctx context.Context) error
	Send(ctx context.Context, text string) error
	Attach(ctx context.Context, kind models.MediaKind, path string) error
	Avatar(ctx context.Context, url string) error
	DeleteAccount(ctx context.Context) error
	SignOut(ctx context.Context) error
}

// runREPL reads commands from reader until EOF or "exit"/"quit".
//
//	Signed out:
//	  - help                    show available commands
//	  - signup | register       create an account
//	  - login [provider]        sign in with a password, or with google.com / github.com
//	  - confirm <token>         confirm the email address
//	  - resend                  send a new verification token
//	  - exit | quit             leave the program
//
//	Signed in:
//	  - feed | l | list         show the message feed
//	  - users | who             show the users directory
//	  - send [text]             send a text message (multi-line prompt without text)
//	  - image <path>            send an image
//	  - video <path>            send a video
//	  - avatar <url>            change your avatar
//	  - delete-account          delete your account
//	  - logout                  sign out
//	  - exit | quit             leave the program
//
// Errors returned by commands are reported with the command as the title.
// Notifications from background work are printed before each prompt.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		a.flushNotes()
		printlnFn(fmt.Sprintf("gophchat %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		arg := strings.Join(args, " ")

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}
		if cmd == "help" {
			if a.isSignedIn() {
				printlnFn("Available commands: feed, users, send, image, video, avatar, delete-account, logout, exit")
			} else {
				printlnFn("Available commands: signup, login [provider], confirm <token>, resend, exit")
			}
			continue
		}

		var run func() error
		if a.isSignedIn() {
			switch cmd {
			case "feed", "l", "list":
				run = func() error { return a.Show(ctx) }
			case "users", "who":
				run = func() error { return a.Users(ctx) }
			case "send":
				run = func() error { return a.Send(ctx, arg) }
			case "image":
				run = func() error { return a.Attach(ctx, models.MediaImage, arg) }
			case "video":
				run = func() error { return a.Attach(ctx, models.MediaVideo, arg) }
			case "avatar":
				run = func() error { return a.Avatar(ctx, arg) }
			case "delete-account":
				run = func() error { return a.DeleteAccount(ctx) }
			case "logout":
				run = func() error { return a.SignOut(ctx) }
			case "signup", "register", "login", "confirm", "resend":
				printlnFn("Already signed in, logout first")
				continue
			}
		} else {
			switch cmd {
			case "signup", "register":
				run = func() error { return a.SignUp(ctx) }
			case "login":
				if arg != "" {
					run = func() error { return a.SignInWith(ctx, arg) }
				} else {
					run = func() error { return a.SignIn(ctx) }
				}
			case "confirm":
				run = func() error { return a.Confirm(ctx, arg) }
			case "resend":
				run = func() error { return a.Resend(ctx) }
			case "feed", "l", "list", "users", "who", "send", "image", "video", "avatar", "delete-account", "logout":
				printlnFn("Please login first")
				continue
			}
		}

		if run == nil {
			printlnFn("Unknown command:", cmd)
			continue
		}
		if err := run(); err != nil {
			printlnFn(notify.FromError(cmd, err).String())
		}
	}
}
