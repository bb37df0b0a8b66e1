// Package enrich decides, row by row, which searches to run against the
// people-search site and turns the first match into column updates.
package enrich

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/columns"
	"github.com/sells-group/skiptrace/internal/model"
	"github.com/sells-group/skiptrace/pkg/bizfile"
)

// Searcher runs site searches. *crawl.Crawler satisfies it.
type Searcher interface {
	SearchByAddress(ctx context.Context, address, city, state string, owner model.OwnerDetails) model.SearchResult
	SearchByName(ctx context.Context, name, propertyAddress, mailingAddress, city, state string) model.SearchResult
	ExtractDetailsByURL(ctx context.Context, profileURL string) model.ProfileDetails
	CrawlRelativesPhoneNumbers(ctx context.Context, relativeURLs, relativeNames, associateNames []string) *model.RowUpdates
	Requests() int64
}

// PhoneLabeler assigns line types to phone numbers. *phone.Labeler
// satisfies it.
type PhoneLabeler interface {
	LabelPhoneNumbers(ctx context.Context, raw []string) []model.LabeledPhone
}

// NameSplitter extracts a person's first and last name from free text.
type NameSplitter interface {
	SplitPersonName(ctx context.Context, text string) (first, last string, err error)
}

// BusinessRegistry resolves an LLC to its registered agent.
// bizfile.Client satisfies it.
type BusinessRegistry interface {
	LookupAgent(ctx context.Context, llcName string) (*bizfile.Agent, error)
	LookupAgentAddress(ctx context.Context, id string) (*bizfile.AgentAddresses, error)
}

// Deps are the engine's collaborators. Registry and Names may be nil, which
// disables the LLC and fund phases respectively. Control may be nil.
type Deps struct {
	Search   Searcher
	Labeler  PhoneLabeler
	Names    NameSplitter
	Registry BusinessRegistry
	Control  Control
}

// Config tunes the engine.
type Config struct {
	RowConcurrency    int
	IgnoreLLCPatterns []string
	FundPatterns      []string
}

var llcPattern = regexp.MustCompile(`(?i)llc`)

// Engine processes rows for one job.
type Engine struct {
	deps   Deps
	cfg    Config
	ignore []*regexp.Regexp
	funds  []*regexp.Regexp
	now    func() time.Time
}

// NewEngine compiles the configured patterns. Patterns are case-insensitive
// regular expressions; blank entries are ignored.
func NewEngine(deps Deps, cfg Config) (*Engine, error) {
	if deps.Search == nil || deps.Labeler == nil {
		return nil, eris.New("enrich: searcher and labeler are required")
	}
	if deps.Control == nil {
		deps.Control = nopControl{}
	}
	if cfg.RowConcurrency <= 0 {
		cfg.RowConcurrency = 10
	}

	ignore, err := compilePatterns(cfg.IgnoreLLCPatterns)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: ignore_llc_patterns")
	}
	funds, err := compilePatterns(cfg.FundPatterns)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: fund_patterns")
	}
	return &Engine{deps: deps, cfg: cfg, ignore: ignore, funds: funds, now: time.Now}, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, eris.Wrapf(err, "compile %q", p)
		}
		out = append(out, re)
	}
	return out, nil
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// target is the mutable search input of one row.
type target struct {
	owner       model.OwnerDetails
	mailing     string
	mailingCity string
	mailingSt   string
	property    string
	city        string
	state       string
}

// ProcessRow runs the phases for one row and returns the updates of the
// first phase that matched. An empty result means no match, a skipped
// row, or cancellation.
func (e *Engine) ProcessRow(ctx context.Context, f model.RowFields) *model.RowUpdates {
	log := zap.L().With(zap.Int("row", f.Index))
	if e.cancelled(ctx) {
		return model.NewRowUpdates()
	}

	t := target{
		owner:       f.Owner,
		mailing:     f.MailingAddress,
		mailingCity: f.MailingCity,
		mailingSt:   f.MailingState,
		property:    f.Address,
		city:        f.City,
		state:       f.State,
	}

	if skip := e.resolveLLC(ctx, log, &t); skip {
		return model.NewRowUpdates()
	}
	if e.cancelled(ctx) {
		return model.NewRowUpdates()
	}
	e.resolveFund(ctx, log, &t)

	ownerOne := t.owner.OwnerOneFullName()

	if strings.TrimSpace(t.mailing) != "" {
		if e.cancelled(ctx) {
			return model.NewRowUpdates()
		}
		log.Debug("enrich: searching mailing address", zap.String("phase", "A"), zap.String("address", t.mailing))
		if res := e.deps.Search.SearchByAddress(ctx, t.mailing, t.mailingCity, t.mailingSt, t.owner); res.IsMatched {
			return e.finish(ctx, log, "A", res)
		}
	}

	if ownerOne != "" {
		if e.cancelled(ctx) {
			return model.NewRowUpdates()
		}
		log.Debug("enrich: searching owner one name", zap.String("phase", "B"), zap.String("name", ownerOne))
		if res := e.deps.Search.SearchByName(ctx, ownerOne, t.property, t.mailing, t.mailingCity, t.mailingSt); res.IsMatched {
			return e.finish(ctx, log, "B", res)
		}
	}

	if strings.TrimSpace(t.property) != "" {
		if e.cancelled(ctx) {
			return model.NewRowUpdates()
		}
		log.Debug("enrich: searching property address", zap.String("phase", "C"), zap.String("address", t.property))
		if res := e.deps.Search.SearchByAddress(ctx, t.property, t.city, t.state, t.owner); res.IsMatched {
			return e.finish(ctx, log, "C", res)
		}
	}

	ownerTwo := t.owner.OwnerTwoFullName()
	if ownerTwo == "" {
		return model.NewRowUpdates()
	}
	if e.cancelled(ctx) {
		return model.NewRowUpdates()
	}
	log.Debug("enrich: searching owner two name", zap.String("phase", "D"), zap.String("name", ownerTwo))
	res := e.deps.Search.SearchByName(ctx, ownerTwo, t.property, t.mailing, t.mailingCity, t.mailingSt)
	if !res.IsMatched {
		return model.NewRowUpdates()
	}

	updates := e.buildUpdates(ctx, res)
	profileURL := ownerOneRelativeURL(updates, t.owner)
	if profileURL == "" {
		return e.logged(log, "D", updates)
	}
	log.Debug("enrich: owner one is a relative of owner two", zap.String("profile", profileURL))
	return e.logged(log, "D", e.reroot(ctx, profileURL))
}

// resolveLLC replaces an LLC owner with its registered agent. It reports
// whether the row must be skipped.
func (e *Engine) resolveLLC(ctx context.Context, log *zap.Logger, t *target) bool {
	if e.deps.Registry == nil || !llcPattern.MatchString(t.owner.OwnerOneLastName) {
		return false
	}
	if e.cancelled(ctx) {
		return true
	}

	agent, err := e.deps.Registry.LookupAgent(ctx, t.owner.OwnerOneLastName)
	if err != nil {
		log.Warn("enrich: llc agent lookup failed", zap.String("llc", t.owner.OwnerOneLastName), zap.Error(err))
		return false
	}
	if agent.Empty() {
		return false
	}
	if anyMatch(e.ignore, agent.FullName) {
		log.Info("enrich: skipping row, llc agent is an excluded company", zap.String("agent", agent.FullName))
		return true
	}

	t.owner.OwnerOneFirstName = agent.FirstName
	t.owner.OwnerOneLastName = agent.LastName

	if agent.ID == "" {
		return false
	}
	if e.cancelled(ctx) {
		return true
	}
	addrs, err := e.deps.Registry.LookupAgentAddress(ctx, agent.ID)
	if err != nil {
		log.Warn("enrich: llc address lookup failed", zap.String("id", agent.ID), zap.Error(err))
		return false
	}
	t.mailing, t.mailingCity, t.mailingSt = addrs.Mailing.Street, addrs.Mailing.City, addrs.Mailing.State
	t.property, t.city, t.state = addrs.Principal.Street, addrs.Principal.City, addrs.Principal.State
	return false
}

// resolveFund asks the classifier for the person behind a fund or family
// trust name.
func (e *Engine) resolveFund(ctx context.Context, log *zap.Logger, t *target) {
	if e.deps.Names == nil || !anyMatch(e.funds, t.owner.OwnerOneLastName) {
		return
	}
	first, last, err := e.deps.Names.SplitPersonName(ctx, t.owner.OwnerOneLastName)
	if err != nil {
		log.Warn("enrich: name split failed", zap.String("text", t.owner.OwnerOneLastName), zap.Error(err))
		return
	}
	if first == "" && last == "" {
		return
	}
	t.owner.OwnerOneFirstName, t.owner.OwnerOneLastName = first, last
}

func (e *Engine) finish(ctx context.Context, log *zap.Logger, phase string, res model.SearchResult) *model.RowUpdates {
	return e.logged(log, phase, e.buildUpdates(ctx, res))
}

func (e *Engine) logged(log *zap.Logger, phase string, u *model.RowUpdates) *model.RowUpdates {
	log.Info("enrich: row matched", zap.String("phase", phase), zap.Int("fields", u.Len()))
	return u
}

// buildUpdates assembles relatives first, then labeled owner phones, then
// emails.
func (e *Engine) buildUpdates(ctx context.Context, res model.SearchResult) *model.RowUpdates {
	if e.cancelled(ctx) {
		return model.NewRowUpdates()
	}
	updates := model.NewRowUpdates()
	updates.Merge(e.deps.Search.CrawlRelativesPhoneNumbers(ctx, res.RelativeURLs, res.RelativeNames, res.AssociateNames))

	if e.cancelled(ctx) {
		return model.NewRowUpdates()
	}
	setPhones(updates, e.deps.Labeler.LabelPhoneNumbers(ctx, res.MatchedPhones))
	for n, email := range res.Emails {
		updates.Set(columns.Email(n+1), email)
	}
	return updates
}

// reroot uses owner one's own profile, found among owner two's relatives,
// as the row's result.
func (e *Engine) reroot(ctx context.Context, profileURL string) *model.RowUpdates {
	if e.cancelled(ctx) {
		return model.NewRowUpdates()
	}
	details := e.deps.Search.ExtractDetailsByURL(ctx, profileURL)

	if e.cancelled(ctx) {
		return model.NewRowUpdates()
	}
	updates := model.NewRowUpdates()
	updates.Merge(e.deps.Search.CrawlRelativesPhoneNumbers(ctx, details.RelativeURLs, details.RelativeNames, nil))

	if e.cancelled(ctx) {
		return model.NewRowUpdates()
	}
	setPhones(updates, e.deps.Labeler.LabelPhoneNumbers(ctx, details.PhoneNumbers))
	return updates
}

func setPhones(u *model.RowUpdates, phones []model.LabeledPhone) {
	for i, p := range phones {
		u.Set(columns.OwnerMobile(i+1), p.Number)
		u.Set(columns.OwnerMobileType(i+1), string(p.Type))
	}
}

// ownerOneRelativeURL scans *Name fields in order for one containing owner
// one's first and last name and returns the sibling *URL value.
func ownerOneRelativeURL(u *model.RowUpdates, owner model.OwnerDetails) string {
	first := strings.TrimSpace(owner.OwnerOneFirstName)
	last := strings.TrimSpace(owner.OwnerOneLastName)
	if first == "" || last == "" {
		return ""
	}
	for _, key := range u.Keys() {
		if !strings.Contains(key, "Name") {
			continue
		}
		v, _ := u.Get(key)
		v = strings.TrimSpace(v)
		if !strings.Contains(v, first) || !strings.Contains(v, last) {
			continue
		}
		if link, ok := u.Get(strings.Replace(key, "Name", "URL", 1)); ok && link != "" {
			return link
		}
	}
	return ""
}
