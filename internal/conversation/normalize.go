// Package conversation implements the project-request chat workflow:
// normalization of the stored keyed-record trees into ordered message
// sequences, live per-conversation and per-list views, and the intake
// and free-text write paths.
package conversation

import (
	"encoding/json"
	"sort"

	"github.com/buildbyprohor/studio-api/internal/domain"
)

// FallbackTitle is used when a conversation has no intake submission to
// derive a title from.
const FallbackTitle = "New Project Inquiry"

// UnknownEmail is the admin-list placeholder for an owner id with no
// user record.
const UnknownEmail = "Unknown Email"

// rawConversation mirrors the stored record shape. Messages stay raw so
// one malformed entry cannot poison the rest.
type rawConversation struct {
	Date        string                     `json:"date"`
	Time        string                     `json:"time"`
	LastUpdated int64                      `json:"lastUpdated"`
	UserPhoto   string                     `json:"userPhoto"`
	Messages    map[string]json.RawMessage `json:"messages"`
}

type rawMessage struct {
	Sender    domain.Sender      `json:"sender"`
	Type      domain.MessageType `json:"type"`
	Content   json.RawMessage    `json:"content"`
	Timestamp int64              `json:"timestamp"`
}

// Normalize converts a raw conversation subtree into a Conversation
// with its keyed message record flattened into a sorted slice. It is
// pure and total: an absent or malformed tree yields a conversation
// with no messages, never an error. Messages sort ascending by
// timestamp; ties keep key order, which matches insertion order for
// store-generated keys.
func Normalize(ownerID, chatID string, raw json.RawMessage) domain.Conversation {
	conv := domain.Conversation{
		ID:       chatID,
		OwnerID:  ownerID,
		Messages: []domain.Message{},
	}
	if len(raw) == 0 {
		return conv
	}

	var rc rawConversation
	if err := json.Unmarshal(raw, &rc); err != nil {
		return conv
	}
	conv.Date = rc.Date
	conv.Time = rc.Time
	conv.LastUpdated = rc.LastUpdated
	conv.UserPhoto = rc.UserPhoto

	keys := make([]string, 0, len(rc.Messages))
	for k := range rc.Messages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var rm rawMessage
		if err := json.Unmarshal(rc.Messages[k], &rm); err != nil {
			// Skip the unparseable record rather than blank the thread.
			continue
		}
		conv.Messages = append(conv.Messages, domain.Message{
			ID:        k,
			Sender:    rm.Sender,
			Type:      rm.Type,
			Content:   rm.Content,
			Timestamp: rm.Timestamp,
		})
	}

	sort.SliceStable(conv.Messages, func(i, j int) bool {
		return conv.Messages[i].Timestamp < conv.Messages[j].Timestamp
	})

	conv.IntakeComplete = intakeComplete(conv.Messages)
	return conv
}

func intakeComplete(messages []domain.Message) bool {
	for _, m := range messages {
		if m.Type == domain.MessageForm {
			return true
		}
	}
	return false
}

// DisplayTitle derives a conversation's list title: the brand name of
// the first intake submission, or the fixed fallback.
func DisplayTitle(conv domain.Conversation) string {
	for _, m := range conv.Messages {
		if m.Type != domain.MessageForm {
			continue
		}
		var content struct {
			BrandBusinessName string `json:"brandBusinessName"`
		}
		if err := json.Unmarshal(m.Content, &content); err == nil && content.BrandBusinessName != "" {
			return content.BrandBusinessName
		}
	}
	return FallbackTitle
}

// Summarize reduces a conversation to its list row.
func Summarize(conv domain.Conversation) domain.ConversationSummary {
	return domain.ConversationSummary{
		ID:          conv.ID,
		OwnerID:     conv.OwnerID,
		Title:       DisplayTitle(conv),
		Date:        conv.Date,
		Time:        conv.Time,
		LastUpdated: conv.LastUpdated,
		UserPhoto:   conv.UserPhoto,
	}
}

// SortSummaries orders list rows most-recent first. The sort is stable;
// equal timestamps keep their incoming order.
func SortSummaries(summaries []domain.ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastUpdated > summaries[j].LastUpdated
	})
}
