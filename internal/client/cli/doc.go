// Package cli provides the interactive gophchat command-line client.
//
// It is the rendering layer of the chat: an App keeps the live message and
// user feeds open while signed in, projects them into rows on demand, and
// drives the session, upload and account deletion flows from a simple REPL.
// Failures of background work arrive on a notification channel that is
// drained before every prompt.
//
// Commands when signed out: signup, login [provider], confirm <token>,
// resend, exit. When signed in: feed, users, send [text], image <path>,
// video <path>, avatar <url>, delete-account, logout, exit.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
