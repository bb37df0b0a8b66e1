package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/skiptrace/internal/columns"
	"github.com/sells-group/skiptrace/internal/model"
	"github.com/sells-group/skiptrace/pkg/bizfile"
)

// fakeSearcher returns scripted results and records every search.
type fakeSearcher struct {
	mu        sync.Mutex
	byAddress map[string]model.SearchResult
	byName    map[string]model.SearchResult
	profiles  map[string]model.ProfileDetails
	calls     []string
	panicOn   string
}

func (f *fakeSearcher) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSearcher) SearchByAddress(_ context.Context, address, city, state string, _ model.OwnerDetails) model.SearchResult {
	if f.panicOn != "" && address == f.panicOn {
		panic("fixture exploded")
	}
	f.record("address:" + address + "|" + city + "|" + state)
	return f.byAddress[address]
}

func (f *fakeSearcher) SearchByName(_ context.Context, name, _, _, _, _ string) model.SearchResult {
	f.record("name:" + name)
	return f.byName[name]
}

func (f *fakeSearcher) ExtractDetailsByURL(_ context.Context, url string) model.ProfileDetails {
	f.record("profile:" + url)
	return f.profiles[url]
}

func (f *fakeSearcher) CrawlRelativesPhoneNumbers(_ context.Context, urls, names, associates []string) *model.RowUpdates {
	u := model.NewRowUpdates()
	for i, link := range urls {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		u.Set(columns.RelativeName(i), name)
		u.Set(columns.RelativeURL(i), link)
	}
	return u
}

func (f *fakeSearcher) Requests() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.calls))
}

func (f *fakeSearcher) searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type wirelessLabeler struct{}

func (wirelessLabeler) LabelPhoneNumbers(_ context.Context, raw []string) []model.LabeledPhone {
	out := make([]model.LabeledPhone, len(raw))
	for i, r := range raw {
		out[i] = model.LabeledPhone{Number: r, Type: model.PhoneTypeWireless}
	}
	return out
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) LookupAgent(ctx context.Context, name string) (*bizfile.Agent, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bizfile.Agent), args.Error(1)
}

func (m *mockRegistry) LookupAgentAddress(ctx context.Context, id string) (*bizfile.AgentAddresses, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bizfile.AgentAddresses), args.Error(1)
}

type mockNames struct {
	mock.Mock
}

func (m *mockNames) SplitPersonName(ctx context.Context, text string) (string, string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.String(1), args.Error(2)
}

type stubControl struct {
	mu        sync.Mutex
	cancelled bool
	progress  []model.Progress
}

func (s *stubControl) IsCancelled(context.Context, string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *stubControl) ReportProgress(_ context.Context, _ string, p model.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, p)
}

func newTestEngine(t *testing.T, deps Deps, cfg Config) *Engine {
	t.Helper()
	if deps.Labeler == nil {
		deps.Labeler = wirelessLabeler{}
	}
	if cfg.FundPatterns == nil {
		cfg.FundPatterns = []string{"fund", "funds", "family"}
	}
	e, err := NewEngine(deps, cfg)
	require.NoError(t, err)
	return e
}

func janeRow() model.RowFields {
	return model.RowFields{
		Index:          3,
		Address:        "12 Oak St",
		City:           "Springfield",
		State:          "IL",
		MailingAddress: "PO Box 9",
		MailingCity:    "Chicago",
		MailingState:   "IL",
		Owner:          model.OwnerDetails{OwnerOneFirstName: "Jane", OwnerOneLastName: "Smith"},
	}
}

var matched = model.SearchResult{
	IsMatched:     true,
	MatchedPhones: []string{"(818) 216-1919", "(310) 555-1234"},
	RelativeURLs:  []string{"/p/ann"},
	RelativeNames: []string{"Ann Smith"},
	Emails:        []string{"jane@example.com"},
}

func TestProcessRow_PhaseAUpdateOrder(t *testing.T) {
	s := &fakeSearcher{byAddress: map[string]model.SearchResult{"PO Box 9": matched}}
	e := newTestEngine(t, Deps{Search: s}, Config{})

	u := e.ProcessRow(context.Background(), janeRow())
	assert.Equal(t, []string{
		"relative0Name", "relative0URL",
		"ownerMobile1", "ownerMobile1Type", "ownerMobile2", "ownerMobile2Type",
		"email1",
	}, u.Keys())

	typ, _ := u.Get("ownerMobile2Type")
	assert.Equal(t, "Wireless", typ)
	assert.Equal(t, []string{"address:PO Box 9|Chicago|IL"}, s.searches())
}

func TestProcessRow_PhaseOrder(t *testing.T) {
	s := &fakeSearcher{byAddress: map[string]model.SearchResult{"12 Oak St": matched}}
	e := newTestEngine(t, Deps{Search: s}, Config{})

	u := e.ProcessRow(context.Background(), janeRow())
	assert.Positive(t, u.Len())
	assert.Equal(t, []string{
		"address:PO Box 9|Chicago|IL",
		"name:Jane Smith",
		"address:12 Oak St|Springfield|IL",
	}, s.searches())
}

func TestProcessRow_NoMatch(t *testing.T) {
	s := &fakeSearcher{}
	row := janeRow()
	row.Owner.OwnerTwoFirstName, row.Owner.OwnerTwoLastName = "Bob", "Smith"
	e := newTestEngine(t, Deps{Search: s}, Config{})

	u := e.ProcessRow(context.Background(), row)
	assert.Equal(t, 0, u.Len())
	assert.Equal(t, []string{
		"address:PO Box 9|Chicago|IL",
		"name:Jane Smith",
		"address:12 Oak St|Springfield|IL",
		"name:Bob Smith",
	}, s.searches())
}

func TestProcessRow_BlankInputsSkipPhases(t *testing.T) {
	s := &fakeSearcher{}
	row := janeRow()
	row.MailingAddress, row.MailingCity, row.MailingState = " ", "", ""
	row.Owner = model.OwnerDetails{OwnerTwoFirstName: "Bob", OwnerTwoLastName: "Smith"}
	e := newTestEngine(t, Deps{Search: s}, Config{})

	u := e.ProcessRow(context.Background(), row)
	assert.Equal(t, 0, u.Len())
	assert.Equal(t, []string{
		"address:12 Oak St|Springfield|IL",
		"name:Bob Smith",
	}, s.searches())

	row.Address = ""
	row.Owner = model.OwnerDetails{}
	s = &fakeSearcher{}
	e = newTestEngine(t, Deps{Search: s}, Config{})
	assert.Equal(t, 0, e.ProcessRow(context.Background(), row).Len())
	assert.Empty(t, s.searches())
}

func TestProcessRow_FundOverride(t *testing.T) {
	s := &fakeSearcher{byName: map[string]model.SearchResult{"John Smith": matched}}
	names := &mockNames{}
	names.On("SplitPersonName", mock.Anything, "Smith Family Trust").Return("John", "Smith", nil)

	row := janeRow()
	row.MailingAddress = ""
	row.Owner = model.OwnerDetails{OwnerOneLastName: "Smith Family Trust"}

	e := newTestEngine(t, Deps{Search: s, Names: names}, Config{})
	u := e.ProcessRow(context.Background(), row)

	assert.Positive(t, u.Len())
	assert.Equal(t, []string{"name:John Smith"}, s.searches())
	names.AssertExpectations(t)
}

func TestProcessRow_FundSplitErrorKeepsNames(t *testing.T) {
	s := &fakeSearcher{}
	names := &mockNames{}
	names.On("SplitPersonName", mock.Anything, "Lee Funds").Return("", "", errors.New("rate limited"))

	row := model.RowFields{Owner: model.OwnerDetails{OwnerOneFirstName: "Ann", OwnerOneLastName: "Lee Funds"}}
	e := newTestEngine(t, Deps{Search: s, Names: names}, Config{})
	e.ProcessRow(context.Background(), row)

	assert.Equal(t, []string{"name:Ann Lee Funds"}, s.searches())
}

func TestProcessRow_LLCResolvesAgentAndAddresses(t *testing.T) {
	s := &fakeSearcher{byAddress: map[string]model.SearchResult{"500 ocean ave": matched}}
	reg := &mockRegistry{}
	reg.On("LookupAgent", mock.Anything, "ACME HOLDINGS LLC").
		Return(&bizfile.Agent{ID: "9001", FirstName: "John", LastName: "Public", FullName: "JOHN Q PUBLIC"}, nil)
	reg.On("LookupAgentAddress", mock.Anything, "9001").Return(&bizfile.AgentAddresses{
		Mailing:   bizfile.Address{Street: "po box 77", City: "los angeles", State: "ca"},
		Principal: bizfile.Address{Street: "500 ocean ave", City: "santa monica", State: "ca"},
	}, nil)

	row := janeRow()
	row.Owner = model.OwnerDetails{OwnerOneLastName: "ACME HOLDINGS LLC"}

	e := newTestEngine(t, Deps{Search: s, Registry: reg}, Config{})
	u := e.ProcessRow(context.Background(), row)

	assert.Positive(t, u.Len())
	assert.Equal(t, []string{
		"address:po box 77|los angeles|ca",
		"name:John Public",
		"address:500 ocean ave|santa monica|ca",
	}, s.searches())
	reg.AssertExpectations(t)
}

func TestProcessRow_LLCExcludedAgentSkipsRow(t *testing.T) {
	s := &fakeSearcher{}
	reg := &mockRegistry{}
	reg.On("LookupAgent", mock.Anything, "Oak LLC").
		Return(&bizfile.Agent{ID: "1", FirstName: "Csc", LastName: "Service", FullName: "CSC LAWYERS INCORPORATING SERVICE"}, nil)

	row := janeRow()
	row.Owner = model.OwnerDetails{OwnerOneLastName: "Oak LLC"}

	e := newTestEngine(t, Deps{Search: s, Registry: reg}, Config{IgnoreLLCPatterns: []string{"", "csc lawyers"}})
	u := e.ProcessRow(context.Background(), row)

	assert.Equal(t, 0, u.Len())
	assert.Empty(t, s.searches())
	reg.AssertNotCalled(t, "LookupAgentAddress", mock.Anything, mock.Anything)
}

func TestProcessRow_LLCLookupFailureKeepsNames(t *testing.T) {
	s := &fakeSearcher{}
	reg := &mockRegistry{}
	reg.On("LookupAgent", mock.Anything, "Oak LLC").Return(nil, errors.New("bizfile down"))

	row := janeRow()
	row.Owner = model.OwnerDetails{OwnerOneFirstName: "Pat", OwnerOneLastName: "Oak LLC"}

	e := newTestEngine(t, Deps{Search: s, Registry: reg}, Config{})
	e.ProcessRow(context.Background(), row)
	assert.Contains(t, s.searches(), "name:Pat Oak LLC")
}

func TestProcessRow_PhaseDReroot(t *testing.T) {
	s := &fakeSearcher{
		byName: map[string]model.SearchResult{
			"Bob Smith": {
				IsMatched:     true,
				MatchedPhones: []string{"(111) 111-1111"},
				RelativeURLs:  []string{"/p/carl", "/p/jane"},
				RelativeNames: []string{"Carl Smith", "Jane Q Smith"},
			},
		},
		profiles: map[string]model.ProfileDetails{
			"/p/jane": {
				PhoneNumbers:  []string{"(222) 222-2222"},
				RelativeURLs:  []string{"/p/dora"},
				RelativeNames: []string{"Dora Smith"},
			},
		},
	}
	row := janeRow()
	row.MailingAddress, row.Address = "", ""
	row.Owner.OwnerTwoFirstName, row.Owner.OwnerTwoLastName = "Bob", "Smith"

	e := newTestEngine(t, Deps{Search: s}, Config{})
	u := e.ProcessRow(context.Background(), row)

	assert.Equal(t, []string{"relative0Name", "relative0URL", "ownerMobile1", "ownerMobile1Type"}, u.Keys())
	phone, _ := u.Get("ownerMobile1")
	assert.Equal(t, "(222) 222-2222", phone)
	rel, _ := u.Get("relative0Name")
	assert.Equal(t, "Dora Smith", rel)
	assert.Equal(t, []string{"name:Jane Smith", "name:Bob Smith", "profile:/p/jane"}, s.searches())
}

func TestProcessRow_PhaseDWithoutOwnerOneRelative(t *testing.T) {
	s := &fakeSearcher{byName: map[string]model.SearchResult{"Bob Smith": matched}}
	row := model.RowFields{Owner: model.OwnerDetails{OwnerTwoFirstName: "Bob", OwnerTwoLastName: "Smith"}}

	e := newTestEngine(t, Deps{Search: s}, Config{})
	u := e.ProcessRow(context.Background(), row)

	email, _ := u.Get("email1")
	assert.Equal(t, "jane@example.com", email)
	assert.Equal(t, []string{"name:Bob Smith"}, s.searches())
}

func TestProcessRow_Idempotent(t *testing.T) {
	s := &fakeSearcher{byAddress: map[string]model.SearchResult{"PO Box 9": matched}}
	e := newTestEngine(t, Deps{Search: s}, Config{})

	first := e.ProcessRow(context.Background(), janeRow())
	second := e.ProcessRow(context.Background(), janeRow())
	assert.Equal(t, first.Keys(), second.Keys())
	assert.Equal(t, first.Map(), second.Map())
}

func TestProcessRow_Cancelled(t *testing.T) {
	s := &fakeSearcher{byAddress: map[string]model.SearchResult{"PO Box 9": matched}}
	ctl := &stubControl{cancelled: true}
	e := newTestEngine(t, Deps{Search: s, Control: ctl}, Config{})

	u := e.ProcessRow(WithJobID(context.Background(), "job-1"), janeRow())
	assert.Equal(t, 0, u.Len())
	assert.Empty(t, s.searches())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, newTestEngine(t, Deps{Search: s}, Config{}).ProcessRow(ctx, janeRow()).Len())
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(Deps{}, Config{})
	assert.Error(t, err)

	_, err = NewEngine(Deps{Search: &fakeSearcher{}, Labeler: wirelessLabeler{}}, Config{FundPatterns: []string{"("}})
	assert.Error(t, err)
}

func TestOwnerOneRelativeURL(t *testing.T) {
	u := model.NewRowUpdates()
	u.Set("associate0Name", "Jane Smith")
	u.Set("relative0Name", "Jane Smith")
	u.Set("relative0URL", "/p/jane")

	assert.Equal(t, "/p/jane", ownerOneRelativeURL(u, model.OwnerDetails{OwnerOneFirstName: "Jane", OwnerOneLastName: "Smith"}))
	assert.Equal(t, "", ownerOneRelativeURL(u, model.OwnerDetails{OwnerOneLastName: "Smith"}))
}
