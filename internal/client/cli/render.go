package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/projector"
)

// renderFeed prints rows grouped by author run:
//
//	Ann *
//	  09:14  hi all
//	  09:15  [image: beach photo] https://...
func renderFeed(w io.Writer, items []projector.Item) {
	for _, it := range items {
		if it.ShowAuthor {
			fmt.Fprintln(w, authorLine(it))
		}
		indent := "\n" + strings.Repeat(" ", len(it.Time)+4)
		fmt.Fprintf(w, "  %s  %s\n", it.Time, strings.ReplaceAll(body(it), "\n", indent))
	}
}

func authorLine(it projector.Item) string {
	s := it.AuthorName
	if it.IsOwn {
		s += " (you)"
	}
	if it.Online {
		s += " *"
	}
	return s
}

func body(it projector.Item) string {
	if it.Media == nil {
		return it.Text
	}
	m := fmt.Sprintf("[%s: %s] %s", it.Media.Kind, it.Media.Hint, it.Media.URL)
	if it.Text == "" {
		return m
	}
	return it.Text + "\n" + m
}

func renderUsers(w io.Writer, users []models.User, currentUserID, fallback string) {
	for _, u := range users {
		mark := " "
		if u.Online {
			mark = "*"
		}
		name := u.DisplayName(fallback)
		if u.ID == currentUserID {
			name += " (you)"
		}
		fmt.Fprintf(w, "%s %s\n", mark, name)
	}
}
