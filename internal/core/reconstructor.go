package core

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Reconstruction is the outcome of one reconstruction run
type Reconstruction struct {
	// Threads holds one entry per distinct thread, ordered by first message date
	Threads []*Thread
	// Skipped lists malformed input messages that were left out
	Skipped []*MessageError
	// Conflicts lists ids seen again with differing content; the first
	// occurrence in date order was kept
	Conflicts []*MessageError
	// Redelivered lists ids seen again with identical content
	Redelivered []string
	// MissingParents lists In-Reply-To ids that no input message carries
	MissingParents []string
}

// MessageCount returns the number of messages across all threads
func (r *Reconstruction) MessageCount() int {
	total := 0
	for _, t := range r.Threads {
		total += t.Len()
	}
	return total
}

// threadTable owns every thread created during a run. Threads are addressed by
// their handle (index into threads); owner maps message ids to handles.
type threadTable struct {
	threads []*Thread
	owner   map[string]int
}

func newThreadTable(capacity int) *threadTable {
	return &threadTable{
		threads: make([]*Thread, 0, capacity),
		owner:   make(map[string]int, capacity),
	}
}

func (tt *threadTable) lookup(id string) (int, bool) {
	handle, ok := tt.owner[id]
	if !ok {
		return 0, false
	}
	if handle < 0 || handle >= len(tt.threads) {
		panic(fmt.Sprintf("thread table corrupted: id %q maps to handle %d of %d", id, handle, len(tt.threads)))
	}
	return handle, true
}

func (tt *threadTable) create(m Message) int {
	handle := len(tt.threads)
	tt.threads = append(tt.threads, NewThread(m))
	tt.owner[m.ID] = handle
	return handle
}

func (tt *threadTable) join(handle int, m Message) {
	if !tt.threads[handle].AddMessage(m) {
		panic(fmt.Sprintf("thread table corrupted: id %q already in thread %q but not owned", m.ID, tt.threads[handle].ID))
	}
	tt.owner[m.ID] = handle
}

// distinct collapses the owner table to one thread per distinct thread id
func (tt *threadTable) distinct() []*Thread {
	handles := make(map[int]struct{}, len(tt.threads))
	for id := range tt.owner {
		handle, _ := tt.lookup(id)
		handles[handle] = struct{}{}
	}

	byID := make(map[string]*Thread, len(handles))
	for handle := range handles {
		t := tt.threads[handle]
		if _, ok := byID[t.ID]; !ok {
			byID[t.ID] = t
		}
	}

	threads := make([]*Thread, 0, len(byID))
	for _, t := range byID {
		threads = append(threads, t)
	}
	sort.Slice(threads, func(i, j int) bool {
		a, b := threads[i].Messages[0].Date, threads[j].Messages[0].Date
		if a.Equal(b) {
			return threads[i].ID < threads[j].ID
		}
		return a.Before(b)
	})
	return threads
}

// ThreadReconstructor groups a flat set of messages into threads using
// In-Reply-To and References rather than any server-side threading.
type ThreadReconstructor struct {
	logger *zap.Logger
}

// NewThreadReconstructor creates a new reconstructor
func NewThreadReconstructor(logger *zap.Logger) *ThreadReconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThreadReconstructor{logger: logger}
}

// Reconstruct builds the threads for the given messages. Input order does not
// matter. Malformed messages and conflicting duplicates are reported in the
// result and never abort the run.
func (r *ThreadReconstructor) Reconstruct(messages []Message) *Reconstruction {
	result := &Reconstruction{}

	valid := make([]Message, 0, len(messages))
	for i := range messages {
		if err := messages[i].validate(); err != nil {
			result.Skipped = append(result.Skipped, &MessageError{
				ID:    messages[i].ID,
				Index: i,
				Err:   err,
			})
			continue
		}
		valid = append(valid, messages[i])
	}

	// Dates are client supplied; ordering only makes it likelier that parents
	// are seen before their replies.
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Date.Before(valid[j].Date)
	})

	table := newThreadTable(len(valid))
	for _, m := range valid {
		if handle, ok := table.lookup(m.ID); ok {
			first := table.threads[handle].Message(m.ID)
			if first == nil {
				panic(fmt.Sprintf("thread table corrupted: id %q owned by thread %q but missing", m.ID, table.threads[handle].ID))
			}
			if first.sameContent(&m) {
				result.Redelivered = append(result.Redelivered, m.ID)
			} else {
				result.Conflicts = append(result.Conflicts, &MessageError{
					ID:  m.ID,
					Err: ErrDuplicateMessageID,
				})
			}
			continue
		}

		joined := false
		for _, candidate := range m.ParentCandidates() {
			if handle, ok := table.lookup(candidate); ok {
				table.join(handle, m)
				joined = true
				break
			}
		}
		if !joined {
			table.create(m)
		}
	}

	result.Threads = table.distinct()
	result.MissingParents = missingParents(valid, table)
	r.report(result)

	return result
}

func missingParents(messages []Message, table *threadTable) []string {
	seen := make(map[string]struct{})
	var missing []string
	for i := range messages {
		parent := messages[i].InReplyTo
		if parent == "" {
			continue
		}
		if _, ok := table.owner[parent]; ok {
			continue
		}
		if _, ok := seen[parent]; ok {
			continue
		}
		seen[parent] = struct{}{}
		missing = append(missing, parent)
	}
	sort.Strings(missing)
	return missing
}

func (r *ThreadReconstructor) report(result *Reconstruction) {
	if len(result.MissingParents) > 0 {
		r.logger.Warn("Some replied-to messages are not in the mailbox",
			zap.Strings("missing_ids", result.MissingParents))
	}
	for _, skipped := range result.Skipped {
		r.logger.Warn("Skipping malformed message",
			zap.Int("index", skipped.Index),
			zap.String("message_id", skipped.ID),
			zap.Error(skipped.Err))
	}
	for _, conflict := range result.Conflicts {
		r.logger.Warn("Ignoring later message with a duplicate id",
			zap.String("message_id", conflict.ID))
	}
	if len(result.Redelivered) > 0 {
		r.logger.Debug("Ignored redelivered messages", zap.Strings("message_ids", result.Redelivered))
	}
	r.logger.Debug("Reconstructed threads",
		zap.Int("threads", len(result.Threads)),
		zap.Int("messages", result.MessageCount()))
}
