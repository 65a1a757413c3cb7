package stats

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/servicedeck/servicedeck/internal/registry"
)

// authStyle selects how the API key reaches the media server.
type authStyle int

const (
	authQuery  authStyle = iota // ?api_key=...
	authHeader                  // X-Emby-Token header
)

// mediaServer reads library counts and active sessions from an Emby-style
// API (Emby and Jellyfin share the endpoints).
type mediaServer struct {
	client *http.Client
	title  string
	auth   authStyle
}

type itemCounts struct {
	MovieCount  int `json:"MovieCount"`
	SeriesCount int `json:"SeriesCount"`
}

type session struct {
	NowPlayingItem *struct {
		Name string `json:"Name"`
	} `json:"NowPlayingItem"`
}

func (m *mediaServer) Fetch(ctx context.Context, cfg registry.Stats) (*Result, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, nil
	}
	base := strings.TrimRight(cfg.URL, "/")

	var counts itemCounts
	if err := m.get(ctx, base+"/Items/Counts", cfg.APIKey, &counts); err != nil && !isStatus(err) {
		return nil, fmt.Errorf("%s counts: %w", strings.ToLower(m.title), err)
	}
	var sessions []session
	if err := m.get(ctx, base+"/Sessions", cfg.APIKey, &sessions); err != nil && !isStatus(err) {
		return nil, fmt.Errorf("%s sessions: %w", strings.ToLower(m.title), err)
	}

	var playing []string
	for _, s := range sessions {
		if s.NowPlayingItem != nil {
			playing = append(playing, s.NowPlayingItem.Name)
		}
	}

	nowPlaying := Item{Label: "Now playing", Value: strconv.Itoa(len(playing)), Hint: "Nothing playing"}
	headline := "Nothing playing"
	if len(playing) > 0 {
		nowPlaying.Hint = strings.Join(firstN(playing, 3), ", ")
		headline = fmt.Sprintf("%d watching", len(playing))
	}

	return &Result{
		Title:    m.title,
		Headline: headline,
		Items: []Item{
			{Label: "Movies", Value: strconv.Itoa(counts.MovieCount)},
			{Label: "Series", Value: strconv.Itoa(counts.SeriesCount)},
			nowPlaying,
		},
		Highlights: firstN(playing, 5),
	}, nil
}

func (m *mediaServer) get(ctx context.Context, url, key string, v any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	switch m.auth {
	case authHeader:
		req.Header.Set("X-Emby-Token", key)
	default:
		q := req.URL.Query()
		q.Set("api_key", key)
		req.URL.RawQuery = q.Encode()
	}
	return getJSON(ctx, m.client, req, v)
}

func isStatus(err error) bool {
	var se *statusError
	return errors.As(err, &se)
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string{}, s...)
}
