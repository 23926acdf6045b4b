package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/events"
	"github.com/spec-kit/guild-ticket-bot/internal/platform"
	"github.com/spec-kit/guild-ticket-bot/internal/repository"
	"github.com/spec-kit/guild-ticket-bot/internal/scheduler"
)

// fakePlatform keeps channels and posted messages in memory. Sending to a
// channel that was never added fails with platform.ErrNotFound.
type fakePlatform struct {
	mu         sync.Mutex
	nextID     int
	channels   map[string]*platform.Channel
	sent       map[string][]platform.OutgoingMessage
	posted     map[string][]platform.Message
	dms        map[string][]platform.OutgoingMessage
	overwrites map[string][]platform.PermissionOverwrite
	deleted    []string
	canManage  bool
	dmErr      error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels:   make(map[string]*platform.Channel),
		sent:       make(map[string][]platform.OutgoingMessage),
		posted:     make(map[string][]platform.Message),
		dms:        make(map[string][]platform.OutgoingMessage),
		overwrites: make(map[string][]platform.PermissionOverwrite),
		canManage:  true,
	}
}

var _ platform.Client = (*fakePlatform)(nil)

func (p *fakePlatform) addChannel(ch platform.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[ch.ID] = &ch
}

func (p *fakePlatform) removeChannel(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.channels, id)
}

func (p *fakePlatform) channel(id string) (platform.Channel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[id]
	if !ok {
		return platform.Channel{}, false
	}
	return *ch, true
}

func (p *fakePlatform) messages(channelID string) []platform.OutgoingMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platform.OutgoingMessage(nil), p.sent[channelID]...)
}

func (p *fakePlatform) directMessages(userID string) []platform.OutgoingMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platform.OutgoingMessage(nil), p.dms[userID]...)
}

func (p *fakePlatform) overwritesOf(channelID string) []platform.PermissionOverwrite {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platform.PermissionOverwrite(nil), p.overwrites[channelID]...)
}

func (p *fakePlatform) CreateChannel(_ context.Context, guildID string, spec platform.ChannelSpec) (*platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	position := 0
	for _, ch := range p.channels {
		if ch.ParentID == spec.ParentID {
			position++
		}
	}
	ch := &platform.Channel{
		ID:       fmt.Sprintf("ch%d", p.nextID),
		GuildID:  guildID,
		ParentID: spec.ParentID,
		Name:     spec.Name,
		Position: position,
	}
	p.channels[ch.ID] = ch
	p.overwrites[ch.ID] = append([]platform.PermissionOverwrite(nil), spec.Overwrites...)
	out := *ch
	return &out, nil
}

func (p *fakePlatform) Channel(_ context.Context, channelID string) (*platform.Channel, error) {
	ch, ok := p.channel(channelID)
	if !ok {
		return nil, platform.ErrNotFound
	}
	return &ch, nil
}

func (p *fakePlatform) CategoryChannels(_ context.Context, _ string, categoryID string) ([]platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []platform.Channel
	for _, ch := range p.channels {
		if ch.ParentID == categoryID {
			out = append(out, *ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (p *fakePlatform) DeleteChannel(_ context.Context, channelID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(p.channels, channelID)
	p.deleted = append(p.deleted, channelID)
	return nil
}

func (p *fakePlatform) edit(channelID string, fn func(*platform.Channel)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	fn(ch)
	return nil
}

func (p *fakePlatform) SetParentCategory(_ context.Context, channelID, categoryID string) error {
	return p.edit(channelID, func(ch *platform.Channel) { ch.ParentID = categoryID })
}

func (p *fakePlatform) SetChannelName(_ context.Context, channelID, name, _ string) error {
	return p.edit(channelID, func(ch *platform.Channel) { ch.Name = name })
}

func (p *fakePlatform) SetChannelPosition(_ context.Context, channelID string, position int) error {
	return p.edit(channelID, func(ch *platform.Channel) { ch.Position = position })
}

func (p *fakePlatform) EditPermissionOverwrite(_ context.Context, channelID string, ow platform.PermissionOverwrite) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	p.overwrites[channelID] = append(p.overwrites[channelID], ow)
	return nil
}

func (p *fakePlatform) SendMessage(_ context.Context, channelID string, msg platform.OutgoingMessage) (*platform.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		return nil, platform.ErrNotFound
	}
	p.sent[channelID] = append(p.sent[channelID], msg)
	posted := platform.Message{
		ID:        fmt.Sprintf("m%d", len(p.sent[channelID])),
		ChannelID: channelID,
		AuthorBot: true,
		Content:   msg.Content,
		Embeds:    msg.Embeds,
	}
	for _, f := range msg.Files {
		posted.Attachments = append(posted.Attachments, platform.Attachment{Name: f.Name, URL: "https://cdn.test/" + f.Name})
	}
	// newest first, like the real history endpoint
	p.posted[channelID] = append([]platform.Message{posted}, p.posted[channelID]...)
	return &posted, nil
}

func (p *fakePlatform) FetchRecentMessages(_ context.Context, channelID string, limit int, _ string) ([]platform.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; !ok {
		return nil, platform.ErrNotFound
	}
	msgs := p.posted[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]platform.Message(nil), msgs...), nil
}

func (p *fakePlatform) SendDirectMessage(_ context.Context, userID string, msg platform.OutgoingMessage) (*platform.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dmErr != nil {
		return nil, p.dmErr
	}
	p.dms[userID] = append(p.dms[userID], msg)
	out := &platform.Message{ID: "dm"}
	for _, f := range msg.Files {
		out.Attachments = append(out.Attachments, platform.Attachment{Name: f.Name, URL: "https://cdn.test/" + f.Name})
	}
	return out, nil
}

func (p *fakePlatform) User(_ context.Context, userID string) (*platform.User, error) {
	return &platform.User{ID: userID, Username: "user-" + userID}, nil
}

func (p *fakePlatform) Guild(_ context.Context, guildID string) (*platform.Guild, error) {
	return &platform.Guild{ID: guildID, Name: "Test Guild"}, nil
}

func (p *fakePlatform) CanManageChannels(context.Context, string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canManage, nil
}

// manualScheduler holds tasks until the test fires them.
type manualScheduler struct {
	mu     sync.Mutex
	tasks  map[string]scheduler.Task
	delays map[string]time.Duration
}

var _ scheduler.Scheduler = (*manualScheduler)(nil)

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tasks: make(map[string]scheduler.Task), delays: make(map[string]time.Duration)}
}

func (m *manualScheduler) Schedule(key string, delay time.Duration, task scheduler.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[key] = task
	m.delays[key] = delay
}

func (m *manualScheduler) Cancel(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[key]
	delete(m.tasks, key)
	return ok
}

func (m *manualScheduler) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[key]
	return ok
}

// take removes the task under key the way an expiring timer does, without
// running it yet.
func (m *manualScheduler) take(t *testing.T, key string) scheduler.Task {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[key]
	require.True(t, ok, "no task pending under %s", key)
	delete(m.tasks, key)
	return task
}

// fire runs the task under key, as the timer would.
func (m *manualScheduler) fire(t *testing.T, key string) {
	t.Helper()
	m.take(t, key)(context.Background())
}

type staticConfigs struct {
	mu      sync.Mutex
	configs map[string]domain.TenantConfig
}

func (s *staticConfigs) Get(_ context.Context, tenantID string, _ bool) (domain.TenantConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[tenantID]
	return cfg, ok
}

func (s *staticConfigs) set(cfg domain.TenantConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.TenantID] = cfg
}

type fakeTranscripts struct{ generated []string }

func (f *fakeTranscripts) Generate(_ context.Context, channel platform.Channel) (platform.File, error) {
	f.generated = append(f.generated, channel.ID)
	return platform.File{Name: "transcript-" + channel.Name + ".html", ContentType: "text/html", Data: []byte("<html></html>")}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

var (
	ownerActor    = domain.Actor{UserID: "u1", Username: "Alice"}
	staffActor    = domain.Actor{UserID: "s1", Username: "Sam", RoleIDs: []string{"staff"}}
	strangerActor = domain.Actor{UserID: "u9", Username: "Mallory"}
)

func testConfig() domain.TenantConfig {
	return domain.TenantConfig{
		TenantID:            "g1",
		IntakeChannelID:     "intake",
		TranscriptChannelID: "logs",
		AdminRoleID:         "staff",
		ActiveCategoryID:    "active",
		ArchiveCategoryID:   "archive",
		Enabled:             true,
	}
}

type harness struct {
	svc         *LifecycleService
	tickets     *repository.MemoryTicketRepository
	configs     *staticConfigs
	platform    *fakePlatform
	sched       *manualScheduler
	transcripts *fakeTranscripts
	events      *recorder
	clock       *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tickets:     repository.NewMemoryTicketRepository(),
		configs:     &staticConfigs{configs: map[string]domain.TenantConfig{"g1": testConfig()}},
		platform:    newFakePlatform(),
		sched:       newManualScheduler(),
		transcripts: &fakeTranscripts{},
		events:      &recorder{},
		clock:       &clock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
	}
	h.platform.addChannel(platform.Channel{ID: "intake", GuildID: "g1", Name: "tickets"})
	h.platform.addChannel(platform.Channel{ID: "logs", GuildID: "g1", Name: "ticket-logs"})

	h.svc = h.service(h.tickets)
	return h
}

// service builds a lifecycle service over the harness collaborators and the
// given ticket store.
func (h *harness) service(tickets repository.TicketRepository) *LifecycleService {
	dispatcher := events.NewInMemoryDispatcher()
	events.SubscribeAll(dispatcher, h.events.handle)

	return NewLifecycleService(LifecycleDependencies{
		Tickets:     tickets,
		Configs:     h.configs,
		Platform:    h.platform,
		Scheduler:   h.sched,
		Transcripts: h.transcripts,
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
		Settings:    DefaultLifecycleSettings(),
		Now:         h.clock.now,
	})
}

// failingUpdates rejects every ticket update with err.
type failingUpdates struct {
	repository.TicketRepository
	err error
}

func (f failingUpdates) Update(context.Context, *domain.Ticket) error { return f.err }

// open creates a ticket for actor through the normal flow.
func (h *harness) open(t *testing.T, actor domain.Actor) *domain.Ticket {
	t.Helper()
	ticket, err := h.svc.CompleteCreate(context.Background(), CreateRequest{
		TenantID: "g1",
		Actor:    actor,
		Type:     domain.TicketTypeSupport,
		Reason:   "  my order is missing  ",
	})
	require.NoError(t, err)
	return ticket
}

func (h *harness) ticket(t *testing.T, channelID string) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.Get(context.Background(), repository.TicketFilter{ChannelID: channelID})
	require.NoError(t, err)
	return ticket
}

// failingDeletes rejects every ticket delete with err.
type failingDeletes struct {
	repository.TicketRepository
	err error
}

func (f failingDeletes) Delete(context.Context, string) error { return f.err }
