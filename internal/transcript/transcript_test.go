package transcript

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/guild-ticket-bot/internal/platform"
)

// history serves ids m0..mN-1 oldest first, paged newest first like the API.
type history struct {
	messages []platform.Message
	calls    int
}

func (h *history) FetchRecentMessages(_ context.Context, _ string, limit int, beforeID string) ([]platform.Message, error) {
	h.calls++
	end := len(h.messages)
	if beforeID != "" {
		for i, m := range h.messages {
			if m.ID == beforeID {
				end = i
				break
			}
		}
	}
	var out []platform.Message
	for i := end - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.messages[i])
	}
	return out, nil
}

func seed(n int) *history {
	h := &history{}
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		h.messages = append(h.messages, platform.Message{
			ID:         fmt.Sprintf("m%d", i),
			AuthorName: "alice",
			Content:    fmt.Sprintf("line %d", i),
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	return h
}

func TestGenerate_PagesAndOrdersOldestFirst(t *testing.T) {
	h := seed(250)
	g := NewGenerator(h, 0)

	file, err := g.Generate(context.Background(), platform.Channel{ID: "c1", Name: "support-alice"})
	require.NoError(t, err)

	assert.Equal(t, 3, h.calls)
	assert.True(t, strings.HasPrefix(file.Name, "transcript-support-alice-"))
	assert.True(t, strings.HasSuffix(file.Name, ".html"))

	html := string(file.Data)
	assert.Contains(t, html, "250 messages")
	assert.Less(t, strings.Index(html, "line 0<"), strings.Index(html, "line 249<"))
}

func TestGenerate_RespectsCap(t *testing.T) {
	h := seed(50)
	g := NewGenerator(h, 20)

	file, err := g.Generate(context.Background(), platform.Channel{ID: "c1", Name: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(file.Data), "20 messages")
	assert.Contains(t, string(file.Data), "line 49")
	assert.NotContains(t, string(file.Data), "line 29<")
}

func TestGenerate_EscapesRawHTML(t *testing.T) {
	h := &history{messages: []platform.Message{{
		ID:         "m0",
		AuthorName: "mallory",
		Content:    "hello <script>alert(1)</script> **bold**",
		Embeds:     []platform.Embed{{Title: "Ticket Closed", Description: "closed by staff"}},
	}}}
	g := NewGenerator(h, 0)

	file, err := g.Generate(context.Background(), platform.Channel{ID: "c1", Name: "x"})
	require.NoError(t, err)

	html := string(file.Data)
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, "<strong>Ticket Closed</strong>")
	assert.Contains(t, html, "<blockquote>")
}
