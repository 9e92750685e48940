package coaching

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

// SpecialistRequest carries one turn's input to a specialist. Context is a
// snapshot; specialists must not mutate session state.
type SpecialistRequest struct {
	Message ConversationMessage
	Context ConversationContext
}

// SpecialistResponse is a specialist's answer for a turn.
type SpecialistResponse struct {
	AgentID          string
	Text             string
	Confidence       float64
	RequiresFollowUp bool
}

// Specialist is the capability contract implemented by responders. Lower
// priority is more authoritative when composing.
type Specialist interface {
	ID() string
	Priority() int
	CanHandle(msg ConversationMessage, ctx ConversationContext) bool
	Process(ctx context.Context, req SpecialistRequest) (SpecialistResponse, error)
}

// Registry is the capability-indexed, fixed-order collection of specialists.
// Registered once at startup; read-only thereafter.
type Registry struct {
	specialists []Specialist
	logger      *logging.Logger
}

// NewRegistry creates a registry with the given specialists in registration
// order.
func NewRegistry(logger *logging.Logger, specialists ...Specialist) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		specialists: specialists,
		logger:      logger.Component("registry"),
	}
}

// Route evaluates each specialist's capability predicate in registration
// order and returns all that accept. A panicking predicate drops that
// specialist only.
func (r *Registry) Route(msg ConversationMessage, snapshot ConversationContext) []Specialist {
	var accepted []Specialist
	for _, s := range r.specialists {
		if r.canHandleSafely(s, msg, snapshot) {
			accepted = append(accepted, s)
		}
	}
	return accepted
}

func (r *Registry) canHandleSafely(s Specialist, msg ConversationMessage, snapshot ConversationContext) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("specialist predicate panicked", "agent", s.ID(), "panic", rec)
			ok = false
		}
	}()
	return s.CanHandle(msg, snapshot)
}

// InvocationResult pairs a specialist's response with its priority for
// composition.
type InvocationResult struct {
	response SpecialistResponse
	priority int
}

// Invoke calls the accepted specialists concurrently. Each specialist gets
// the same snapshot; a failing or panicking handler is reported and dropped,
// never failing the turn. onError runs on the caller's goroutine after every
// specialist has returned, in registration order.
func (r *Registry) Invoke(ctx context.Context, accepted []Specialist, req SpecialistRequest, onError func(agentID string, err error)) []InvocationResult {
	results := make([]*InvocationResult, len(accepted))
	failures := make([]error, len(accepted))
	var wg sync.WaitGroup

	for i, s := range accepted {
		wg.Add(1)
		go func(idx int, s Specialist) {
			defer wg.Done()
			resp, err := processSafely(ctx, s, req)
			if err != nil {
				failures[idx] = err
				return
			}
			if resp.AgentID == "" {
				resp.AgentID = s.ID()
			}
			results[idx] = &InvocationResult{response: resp, priority: s.Priority()}
		}(i, s)
	}
	wg.Wait()

	if onError != nil {
		for i, err := range failures {
			if err != nil {
				onError(accepted[i].ID(), err)
			}
		}
	}

	// Preserve registration order before composition sorts by confidence.
	joined := make([]InvocationResult, 0, len(accepted))
	for _, res := range results {
		if res != nil {
			joined = append(joined, *res)
		}
	}
	return joined
}

func processSafely(ctx context.Context, s Specialist, req SpecialistRequest) (resp SpecialistResponse, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("coaching: specialist %s panicked: %v", s.ID(), rec)
		}
	}()
	return s.Process(ctx, req)
}

// Composition limits for secondary responses.
const (
	maxSecondaryResponses  = 2
	secondaryMinConfidence = 0.7
	secondaryMaxLength     = 280
)

// ComposedReply is the result of merging specialist responses.
type ComposedReply struct {
	Text             string
	PrimaryAgentID   string
	ContributorIDs   []string
	RequiresFollowUp bool
	UsedFallback     bool
}

// Compose merges specialist responses: highest confidence wins, priority
// breaks ties; short, confident secondaries are appended.
func Compose(results []InvocationResult) ComposedReply {
	if len(results) == 0 {
		return ComposedReply{Text: fallbackReply, UsedFallback: true}
	}

	sorted := make([]InvocationResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].response.Confidence != sorted[j].response.Confidence {
			return sorted[i].response.Confidence > sorted[j].response.Confidence
		}
		return sorted[i].priority < sorted[j].priority
	})

	primary := sorted[0].response
	reply := ComposedReply{
		Text:             primary.Text,
		PrimaryAgentID:   primary.AgentID,
		ContributorIDs:   []string{primary.AgentID},
		RequiresFollowUp: primary.RequiresFollowUp,
	}

	appended := 0
	for _, res := range sorted[1:] {
		if appended >= maxSecondaryResponses {
			break
		}
		if res.response.Confidence <= secondaryMinConfidence {
			continue
		}
		if len(res.response.Text) > secondaryMaxLength {
			continue
		}
		reply.Text += "\n\n" + res.response.Text
		reply.ContributorIDs = append(reply.ContributorIDs, res.response.AgentID)
		reply.RequiresFollowUp = reply.RequiresFollowUp || res.response.RequiresFollowUp
		appended++
	}
	return reply
}
