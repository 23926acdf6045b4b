// Package transcript renders a ticket channel's message history into an HTML file.
package transcript

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/spec-kit/guild-ticket-bot/internal/platform"
)

const (
	pageSize = 100
	// DefaultMaxMessages caps how much history one transcript reads.
	DefaultMaxMessages = 2000
)

// MessageSource pages channel history newest first.
type MessageSource interface {
	FetchRecentMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]platform.Message, error)
}

// Generator builds transcripts.
type Generator struct {
	source      MessageSource
	maxMessages int
	markdown    goldmark.Markdown
	page        *template.Template
}

// NewGenerator returns a generator reading at most maxMessages per channel.
func NewGenerator(source MessageSource, maxMessages int) *Generator {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Generator{
		source:      source,
		maxMessages: maxMessages,
		// raw HTML in message bodies is escaped, not passed through
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		page:     template.Must(template.New("transcript").Parse(pageTemplate)),
	}
}

// Generate reads the channel history and returns the rendered file.
func (g *Generator) Generate(ctx context.Context, channel platform.Channel) (platform.File, error) {
	messages, err := g.collect(ctx, channel.ID)
	if err != nil {
		return platform.File{}, fmt.Errorf("collect history of %s: %w", channel.ID, err)
	}

	entries := make([]pageEntry, 0, len(messages))
	for _, m := range messages {
		body, err := g.render(m)
		if err != nil {
			return platform.File{}, fmt.Errorf("render message %s: %w", m.ID, err)
		}
		entries = append(entries, pageEntry{
			Author:    m.AuthorName,
			Bot:       m.AuthorBot,
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
			Body:      body,
		})
	}

	var buf bytes.Buffer
	if err := g.page.Execute(&buf, pageData{
		Channel:  channel.Name,
		Count:    len(entries),
		Entries:  entries,
		Rendered: time.Now().UTC().Format(time.RFC1123),
	}); err != nil {
		return platform.File{}, fmt.Errorf("render transcript page: %w", err)
	}

	return platform.File{
		Name:        fmt.Sprintf("transcript-%s-%s.html", channel.Name, uuid.NewString()[:8]),
		ContentType: "text/html; charset=utf-8",
		Data:        buf.Bytes(),
	}, nil
}

// collect pages backwards and returns messages oldest first.
func (g *Generator) collect(ctx context.Context, channelID string) ([]platform.Message, error) {
	var (
		all    []platform.Message
		before string
	)
	for len(all) < g.maxMessages {
		limit := pageSize
		if remaining := g.maxMessages - len(all); remaining < limit {
			limit = remaining
		}
		batch, err := g.source.FetchRecentMessages(ctx, channelID, limit, before)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < limit {
			break
		}
		before = batch[len(batch)-1].ID
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func (g *Generator) render(m platform.Message) (template.HTML, error) {
	var md strings.Builder
	md.WriteString(m.Content)
	for _, e := range m.Embeds {
		md.WriteString("\n\n")
		if e.AuthorName != "" {
			fmt.Fprintf(&md, "**%s**\n\n", e.AuthorName)
		}
		if e.Title != "" {
			fmt.Fprintf(&md, "**%s**\n\n", e.Title)
		}
		if e.Description != "" {
			md.WriteString(quote(e.Description))
		}
		for _, f := range e.Fields {
			fmt.Fprintf(&md, "\n- **%s:** %s", f.Name, f.Value)
		}
	}
	for _, a := range m.Attachments {
		fmt.Fprintf(&md, "\n\n[%s](%s)", a.Name, a.URL)
	}

	var out bytes.Buffer
	if err := g.markdown.Convert([]byte(md.String()), &out); err != nil {
		return "", err
	}
	// goldmark escapes raw HTML unless WithUnsafe is set
	return template.HTML(out.String()), nil
}

func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n") + "\n"
}

type pageEntry struct {
	Author    string
	Bot       bool
	Timestamp string
	Body      template.HTML
}

type pageData struct {
	Channel  string
	Count    int
	Entries  []pageEntry
	Rendered string
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Transcript #{{.Channel}}</title>
<style>
body{font-family:sans-serif;background:#313338;color:#dbdee1;margin:0;padding:24px}
.msg{padding:8px 0;border-bottom:1px solid #3f4147}
.author{font-weight:600;color:#f2f3f5}
.bot{background:#5865f2;color:#fff;font-size:10px;padding:1px 4px;border-radius:3px;margin-left:4px}
.ts{color:#949ba4;font-size:12px;margin-left:8px}
blockquote{border-left:4px solid #4e5058;margin:4px 0;padding-left:8px}
a{color:#00a8fc}
</style>
</head>
<body>
<h1>#{{.Channel}}</h1>
<p>{{.Count}} messages, exported {{.Rendered}}</p>
{{range .Entries}}<div class="msg">
<span class="author">{{.Author}}</span>{{if .Bot}}<span class="bot">BOT</span>{{end}}<span class="ts">{{.Timestamp}}</span>
<div class="body">{{.Body}}</div>
</div>
{{end}}</body>
</html>
`
