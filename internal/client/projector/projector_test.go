package projector

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/google/go-cmp/cmp"
)

var ts = time.Date(2026, 10, 15, 7, 5, 0, 0, time.UTC)

func TestProject_AuthorChromeCollapsing(t *testing.T) {
	msgs := []models.Message{
		{ID: "1", AuthorID: "a", Text: "one", Timestamp: ts},
		{ID: "2", AuthorID: "a", Text: "two", Timestamp: ts},
		{ID: "3", AuthorID: "b", Text: "three", Timestamp: ts},
	}
	got := Project(msgs, nil, "", Format{Location: time.UTC})

	var show []bool
	for _, it := range got {
		show = append(show, it.ShowAuthor)
	}
	if diff := cmp.Diff([]bool{true, false, true}, show); diff != "" {
		t.Errorf("ShowAuthor mismatch (-want +got):\n%s", diff)
	}
}

func TestProject_ResolvesAuthors(t *testing.T) {
	loc := time.FixedZone("EEST", 3*60*60)
	media := &models.Media{Kind: models.MediaImage, URL: "https://cdn/x.png", Hint: "cat"}
	msgs := []models.Message{
		{ID: "1", AuthorID: "a", Text: "hello", Timestamp: ts},
		{ID: "2", AuthorID: "ghost", Media: media, Timestamp: ts.Add(time.Minute)},
		{ID: "3", AuthorID: "a", Text: "again", Timestamp: ts.Add(2 * time.Minute)},
	}
	users := []models.User{
		{ID: "a", Name: "Ann", AvatarURL: "https://cdn/ann.png", Online: true},
	}

	got := Project(msgs, users, "a", Format{Location: loc})
	want := []Item{
		{MessageID: "1", AuthorID: "a", AuthorName: "Ann", AvatarURL: "https://cdn/ann.png", Online: true, KnownUser: true, ShowAuthor: true, IsOwn: true, Text: "hello", Time: "10:05"},
		{MessageID: "2", AuthorID: "ghost", AuthorName: DefaultFallback, ShowAuthor: true, Media: media, Time: "10:06"},
		{MessageID: "3", AuthorID: "a", AuthorName: "Ann", AvatarURL: "https://cdn/ann.png", Online: true, KnownUser: true, ShowAuthor: true, IsOwn: true, Text: "again", Time: "10:07"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Project mismatch (-want +got):\n%s", diff)
	}
}

func TestProject_NameFallsBackToEmail(t *testing.T) {
	got := Project(
		[]models.Message{{ID: "1", AuthorID: "a", Text: "x", Timestamp: ts}},
		[]models.User{{ID: "a", Email: "ann@example.com"}},
		"", Format{Location: time.UTC, Layout: time.Kitchen, FallbackName: "someone"},
	)
	if got[0].AuthorName != "ann" {
		t.Errorf("AuthorName = %q, want ann", got[0].AuthorName)
	}
	if got[0].Time != "7:05AM" {
		t.Errorf("Time = %q, want 7:05AM", got[0].Time)
	}
}

func TestProject_Pure(t *testing.T) {
	msgs := []models.Message{{ID: "1", AuthorID: "a", Text: "x", Timestamp: ts}}
	users := []models.User{{ID: "a", Name: "Ann"}}
	f := Format{Location: time.UTC}

	first := Project(msgs, users, "a", f)
	second := Project(msgs, users, "a", f)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Project is not deterministic:\n%s", diff)
	}
	if len(Project(nil, users, "a", f)) != 0 {
		t.Error("expected no items for an empty feed")
	}
}
