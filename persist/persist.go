package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	oc "github.com/gofhir/orchestrator"
)

// Key prefixes. Composite keys are pipe-joined; FHIR resource types and
// ids cannot contain the separator.
const (
	prefixResult  = "result|"
	prefixMessage = "msg|"
	prefixGroup   = "grp|"
)

// maxTxnRetries bounds the conflict-retry loop on concurrent upserts.
const maxTxnRetries = 16

// ErrTooManyConflicts is returned when a transaction cannot commit within
// the retry bound.
var ErrTooManyConflicts = errors.New("persist: too many transaction conflicts")

// StoredAspectResult is the per-aspect result row.
type StoredAspectResult struct {
	Scope        string           `json:"scope"`
	ResourceType string           `json:"resourceType"`
	ResourceID   string           `json:"resourceId"`
	Aspect       oc.AspectTag     `json:"aspect"`
	SettingsHash string           `json:"settingsHash"`
	Status       oc.OutcomeStatus `json:"status"`
	IsValid      bool             `json:"isValid"`
	DurationMs   int64            `json:"durationMs"`
	IssueCount   int              `json:"issueCount"`
	StoredAt     time.Time        `json:"storedAt"`
}

// ValidationMessage is one normalized issue row, keyed under its result.
type ValidationMessage struct {
	ID            string    `json:"id"`
	Signature     string    `json:"signature"`
	Severity      string    `json:"severity"`
	Code          string    `json:"code,omitempty"`
	Path          string    `json:"path,omitempty"`
	PathTruncated bool      `json:"pathTruncated,omitempty"`
	Text          string    `json:"text"`
	TextTruncated bool      `json:"textTruncated,omitempty"`
	RuleID        string    `json:"ruleId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// MessageGroup aggregates every occurrence of one signature within a
// server scope. Created on first occurrence, updated in place afterwards,
// never re-created.
type MessageGroup struct {
	Signature              string    `json:"signature"`
	Aspect                 string    `json:"aspect"`
	Severity               string    `json:"severity"`
	Code                   string    `json:"code,omitempty"`
	CanonicalPath          string    `json:"canonicalPath,omitempty"`
	SampleText             string    `json:"sampleText"`
	TotalResourcesAffected int64     `json:"totalResourcesAffected"`
	FirstSeenAt            time.Time `json:"firstSeenAt"`
	LastSeenAt             time.Time `json:"lastSeenAt"`
}

func resultKey(scope, resourceType, resourceID string, aspect oc.AspectTag, settingsHash string) []byte {
	return []byte(fmt.Sprintf("%s%s|%s|%s|%s|%s", prefixResult, scope, resourceType, resourceID, aspect, settingsHash))
}

func messagePrefix(scope, resourceType, resourceID string, aspect oc.AspectTag, settingsHash string) []byte {
	return []byte(fmt.Sprintf("%s%s|%s|%s|%s|%s|", prefixMessage, scope, resourceType, resourceID, aspect, settingsHash))
}

func groupKey(scope, signature string) []byte {
	return []byte(prefixGroup + scope + "|" + signature)
}

// PersistAspectResult writes one aspect outcome with delete-then-insert
// semantics: at most one stored row exists per composite key, and the
// outcome's message rows replace any prior ones for that key. Each issue
// additionally upserts its message group.
func (s *Store) PersistAspectResult(ctx context.Context, scope, resourceType, resourceID string,
	outcome oc.AspectOutcome, settingsHash string) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	row := StoredAspectResult{
		Scope:        scope,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Aspect:       outcome.Aspect,
		SettingsHash: settingsHash,
		Status:       outcome.Status,
		IsValid:      outcome.IsValid,
		DurationMs:   outcome.DurationMs,
		IssueCount:   len(outcome.Issues),
		StoredAt:     time.Now().UTC(),
	}
	rowData, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("persist: marshal result row: %w", err)
	}

	key := resultKey(scope, resourceType, resourceID, outcome.Aspect, settingsHash)
	msgPrefix := messagePrefix(scope, resourceType, resourceID, outcome.Aspect, settingsHash)

	messages := make([]ValidationMessage, 0, len(outcome.Issues))
	for _, issue := range outcome.Issues {
		messages = append(messages, normalizeIssue(outcome.Aspect, issue))
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		// Delete-then-insert: drop the prior row and its messages first so
		// re-validation replaces rather than accumulates.
		if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		staleKeys, err := collectKeys(txn, msgPrefix)
		if err != nil {
			return err
		}
		for _, k := range staleKeys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}

		if err := txn.Set(key, rowData); err != nil {
			return err
		}
		for _, msg := range messages {
			data, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			msgKey := append(append([]byte{}, msgPrefix...), []byte(msg.ID)...)
			if err := txn.Set(msgKey, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist: write aspect result: %w", err)
	}

	for _, msg := range messages {
		if err := s.UpsertMessageGroup(ctx, scope, outcome.Aspect.String(), msg); err != nil {
			return err
		}
	}
	return nil
}

// PersistResult writes every outcome of a validation result.
func (s *Store) PersistResult(ctx context.Context, scope string, req oc.ValidationRequest,
	result *oc.ValidationResult, settingsHash string) error {

	resourceID := req.ResourceID
	if resourceID == "" {
		resourceID = "unidentified"
	}
	for _, outcome := range result.Outcomes {
		if err := s.PersistAspectResult(ctx, scope, result.ResourceType, resourceID, outcome, settingsHash); err != nil {
			return err
		}
	}
	return nil
}

// normalizeIssue builds the message row for one issue, computing its
// signature over the normalized path and text.
func normalizeIssue(aspect oc.AspectTag, issue oc.Issue) ValidationMessage {
	path, pathTruncated := NormalizeCanonicalPath(issue.Path, MaxCanonicalPathLen)
	text, textTruncated := NormalizeMessageText(issue.Diagnostics, MaxMessageTextLen)

	return ValidationMessage{
		ID:            uuid.NewString(),
		Signature:     ComputeMessageSignature(aspect.String(), string(issue.Severity), string(issue.Code), path, issue.RuleID, text),
		Severity:      string(issue.Severity),
		Code:          string(issue.Code),
		Path:          path,
		PathTruncated: pathTruncated,
		Text:          text,
		TextTruncated: textTruncated,
		RuleID:        issue.RuleID,
		CreatedAt:     time.Now().UTC(),
	}
}

// UpsertMessageGroup atomically inserts a group with count 1 or increments
// the existing group's count and bumps lastSeenAt. The read and write
// happen inside one transaction; a conflicting concurrent writer causes a
// retry rather than a lost update.
func (s *Store) UpsertMessageGroup(ctx context.Context, scope, aspect string, msg ValidationMessage) error {
	key := groupKey(scope, msg.Signature)

	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			now := time.Now().UTC()
			group := MessageGroup{
				Signature:              msg.Signature,
				Aspect:                 aspect,
				Severity:               msg.Severity,
				Code:                   msg.Code,
				CanonicalPath:          msg.Path,
				SampleText:             msg.Text,
				TotalResourcesAffected: 1,
				FirstSeenAt:            now,
				LastSeenAt:             now,
			}

			item, err := txn.Get(key)
			switch {
			case err == nil:
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &group)
				}); err != nil {
					return err
				}
				group.TotalResourcesAffected++
				group.LastSeenAt = now
			case errors.Is(err, badger.ErrKeyNotFound):
				// first occurrence in scope
			default:
				return err
			}

			data, err := json.Marshal(group)
			if err != nil {
				return err
			}
			return txn.Set(key, data)
		})

		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("persist: upsert message group: %w", err)
		}
		return nil
	}
	return ErrTooManyConflicts
}

// GetMessageGroup returns the group for a signature in scope.
func (s *Store) GetMessageGroup(scope, signature string) (MessageGroup, bool, error) {
	var group MessageGroup
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(scope, signature))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &group)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return MessageGroup{}, false, nil
	}
	if err != nil {
		return MessageGroup{}, false, fmt.Errorf("persist: get message group: %w", err)
	}
	return group, true, nil
}

// GetAspectResult returns the stored row for a composite key.
func (s *Store) GetAspectResult(scope, resourceType, resourceID string,
	aspect oc.AspectTag, settingsHash string) (StoredAspectResult, bool, error) {

	var row StoredAspectResult
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(resultKey(scope, resourceType, resourceID, aspect, settingsHash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return StoredAspectResult{}, false, nil
	}
	if err != nil {
		return StoredAspectResult{}, false, fmt.Errorf("persist: get aspect result: %w", err)
	}
	return row, true, nil
}

// CountResults counts stored result rows under a scope. An empty
// resourceType counts the whole scope.
func (s *Store) CountResults(scope, resourceType, resourceID string) (int, error) {
	prefix := prefixResult + scope + "|"
	if resourceType != "" {
		prefix += resourceType + "|"
		if resourceID != "" {
			prefix += resourceID + "|"
		}
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("persist: count results: %w", err)
	}
	return count, nil
}

// InvalidateAllResults bulk-deletes every result and message row in a
// scope. Used when settings change globally. Message groups survive: they
// aggregate corpus-level findings, not per-validation state.
func (s *Store) InvalidateAllResults(ctx context.Context, scope string) error {
	if err := s.deletePrefix(ctx, []byte(prefixResult+scope+"|")); err != nil {
		return err
	}
	return s.deletePrefix(ctx, []byte(prefixMessage+scope+"|"))
}

// InvalidateResourceResults bulk-deletes the result and message rows of a
// single resource, used when it is re-validated from scratch.
func (s *Store) InvalidateResourceResults(ctx context.Context, scope, resourceType, resourceID string) error {
	suffix := scope + "|" + resourceType + "|" + resourceID + "|"
	if err := s.deletePrefix(ctx, []byte(prefixResult+suffix)); err != nil {
		return err
	}
	return s.deletePrefix(ctx, []byte(prefixMessage+suffix))
}

func (s *Store) deletePrefix(ctx context.Context, prefix []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		keys, err := collectKeys(txn, prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist: delete prefix %q: %w", prefix, err)
	}
	return nil
}

// collectKeys gathers all keys under a prefix. Deletions happen after the
// iterator closes.
func collectKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}
