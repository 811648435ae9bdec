// Package calendar defines the fixed touch plan: which touch types fall on
// which sequence-day, per-channel applicability and the call cap. The plan
// is an immutable injected value loaded from YAML, not a rules engine, so
// it can be audited at a glance and swapped out in tests.
package calendar

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/domain"

	"gopkg.in/yaml.v3"
)

//go:embed plan.yaml
var defaultPlan []byte

// Definition is the immutable touch plan for one full sequence.
type Definition struct {
	length   int
	maxCalls int
	days     map[int][]domain.TaskType
	dayOrder []int
}

type planFile struct {
	Length   int                       `yaml:"length"`
	MaxCalls int                       `yaml:"max_calls"`
	Days     map[int][]domain.TaskType `yaml:"days"`
}

// Default returns the built-in 30-day, 27-touch plan.
func Default() *Definition {
	def, err := Parse(defaultPlan)
	if err != nil {
		// The embedded plan is validated by tests; reaching this means a
		// broken build artifact.
		panic("calendar: embedded plan invalid: " + err.Error())
	}
	return def
}

// Load reads a plan from a YAML file. An empty path yields the default plan.
func Load(path string) (*Definition, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calendar: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML touch plan.
func Parse(data []byte) (*Definition, error) {
	var pf planFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("calendar: decode plan: %w", err)
	}
	if pf.Length < 1 {
		return nil, fmt.Errorf("calendar: length must be positive, got %d", pf.Length)
	}
	if pf.MaxCalls < 1 {
		return nil, fmt.Errorf("calendar: max_calls must be positive, got %d", pf.MaxCalls)
	}

	def := &Definition{
		length:   pf.Length,
		maxCalls: pf.MaxCalls,
		days:     make(map[int][]domain.TaskType, len(pf.Days)),
	}

	calls := 0
	for day, types := range pf.Days {
		if day < 1 || day > pf.Length {
			return nil, fmt.Errorf("calendar: day %d outside 1..%d", day, pf.Length)
		}
		seen := make(map[domain.TaskType]struct{}, len(types))
		for _, t := range types {
			if !domain.IsKnownTaskType(t) {
				return nil, fmt.Errorf("calendar: day %d: unknown task type %q", day, t)
			}
			if _, dup := seen[t]; dup {
				return nil, fmt.Errorf("calendar: day %d: duplicate task type %q", day, t)
			}
			seen[t] = struct{}{}
			if t == domain.TaskCall {
				calls++
			}
		}
		def.days[day] = append([]domain.TaskType(nil), types...)
		def.dayOrder = append(def.dayOrder, day)
	}
	sort.Ints(def.dayOrder)

	if calls > pf.MaxCalls {
		return nil, fmt.Errorf("calendar: plan schedules %d calls, max_calls is %d", calls, pf.MaxCalls)
	}
	if !containsType(def.days[1], domain.TaskCall) {
		return nil, fmt.Errorf("calendar: day 1 must carry the opening call")
	}

	return def, nil
}

// Length returns the sequence length in sequence-days.
func (d *Definition) Length() int { return d.length }

// MaxCalls returns the cap on call touches per contact.
func (d *Definition) MaxCalls() int { return d.maxCalls }

// Days returns every sequence-day that carries obligations, ascending.
func (d *Definition) Days() []int {
	return append([]int(nil), d.dayOrder...)
}

// TotalTouches returns how many touches the full plan schedules.
func (d *Definition) TotalTouches() int {
	total := 0
	for _, types := range d.days {
		total += len(types)
	}
	return total
}

// TasksForDay returns the touch types scheduled on the given sequence-day,
// empty for days with no obligations.
func (d *Definition) TasksForDay(day int) []domain.TaskType {
	return append([]domain.TaskType(nil), d.days[day]...)
}

// NextDayWithTasks returns the smallest day greater than afterDay that has
// at least one touch scheduled. The second return is false when none remain
// and the sequence is complete.
func (d *Definition) NextDayWithTasks(afterDay int) (int, bool) {
	idx := sort.SearchInts(d.dayOrder, afterDay+1)
	if idx >= len(d.dayOrder) {
		return 0, false
	}
	return d.dayOrder[idx], true
}

// IsApplicable reports whether a touch applies to a contact: channel touches
// need the channel available, and call touches stop once the contact has
// reached the call cap.
func (d *Definition) IsApplicable(t domain.TaskType, flags domain.ChannelFlags, counters domain.TouchCounters) bool {
	switch t {
	case domain.TaskCall:
		return counters.CallsMade < d.maxCalls
	case domain.TaskEmail:
		return flags.HasEmail
	case domain.TaskLinkedInDM, domain.TaskLinkedInComment:
		return flags.HasLinkedIn
	case domain.TaskSocialEngage:
		return flags.HasSocialMedia
	case domain.TaskPhysicalMail:
		return true
	default:
		return false
	}
}

// CallOrdinal returns which scheduled call the given day carries (1-based),
// or 0 if the day has no call.
func (d *Definition) CallOrdinal(day int) int {
	if !containsType(d.days[day], domain.TaskCall) {
		return 0
	}
	ordinal := 0
	for _, dy := range d.dayOrder {
		if dy > day {
			break
		}
		if containsType(d.days[dy], domain.TaskCall) {
			ordinal++
		}
	}
	return ordinal
}

// Describe returns a human-readable label for a touch on a given day.
// Calls carry their ordinal position and the last scheduled call is marked
// as final.
func (d *Definition) Describe(t domain.TaskType, day int) string {
	switch t {
	case domain.TaskCall:
		ordinal := d.CallOrdinal(day)
		if ordinal == 0 {
			return "Call"
		}
		if ordinal == d.totalCalls() {
			return fmt.Sprintf("Call #%d (final call)", ordinal)
		}
		return fmt.Sprintf("Call #%d", ordinal)
	case domain.TaskEmail:
		return "Send email"
	case domain.TaskLinkedInDM:
		return "Send LinkedIn DM"
	case domain.TaskLinkedInComment:
		return "Comment on LinkedIn post"
	case domain.TaskSocialEngage:
		return "React and comment on social media"
	case domain.TaskPhysicalMail:
		return "Send physical mail"
	default:
		return string(t)
	}
}

func (d *Definition) totalCalls() int {
	total := 0
	for _, types := range d.days {
		if containsType(types, domain.TaskCall) {
			total++
		}
	}
	return total
}

func containsType(types []domain.TaskType, t domain.TaskType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
