package backend

import (
	"encoding/json"
	"strings"

	"yessir/internal/domain"
)

type transcribeRequest struct {
	AudioBase64 string `json:"audio_base64"`
	ContentType string `json:"content_type"`
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
	Error      string `json:"error"`
	Details    string `json:"details"`
}

type interpretRequest struct {
	Transcript string `json:"transcript"`
	Timezone   string `json:"timezone"`
	Email      string `json:"email,omitempty"`
}

type commandResponse struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	ParsedData map[string]any `json:"parsed_data"`
	Data       map[string]any `json:"data"`
	Error      string         `json:"error"`
	Details    string         `json:"details"`
}

func (r commandResponse) result() domain.CommandResult {
	return domain.CommandResult{
		Type:       domain.IntentType(strings.ToLower(strings.TrimSpace(r.Type))),
		Message:    r.Message,
		ParsedData: r.ParsedData,
		Data:       r.Data,
		Error:      r.Error,
		Details:    r.Details,
	}
}

type listResponse struct {
	Status  string     `json:"status"`
	Type    string     `json:"type"`
	Data    []wireItem `json:"data"`
	Error   string     `json:"error"`
	Details string     `json:"details"`
}

type wireItem struct {
	ID        json.Number `json:"id"`
	Text      string      `json:"text"`
	Title     string      `json:"title"`
	CreatedAt string      `json:"created_at"`
	Priority  string      `json:"priority"`
	Status    string      `json:"status"`
}

// UnmarshalJSON accepts string or numeric ids.
func (w *wireItem) UnmarshalJSON(data []byte) error {
	type plain wireItem
	var raw struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = wireItem(raw.plain)

	var id string
	if err := json.Unmarshal(raw.ID, &id); err == nil {
		w.ID = json.Number(id)
		return nil
	}
	w.ID = json.Number(strings.TrimSpace(string(raw.ID)))
	if w.ID == "null" {
		w.ID = ""
	}
	return nil
}

func (w wireItem) item(kind domain.ItemKind) domain.Item {
	item := domain.Item{
		ID:       w.ID.String(),
		Title:    w.Title,
		Text:     w.Text,
		Kind:     kind,
		Priority: w.Priority,
		Status:   w.Status,
	}
	if createdAt, ok := domain.ParseTimestamp(w.CreatedAt); ok {
		item.CreatedAt = createdAt
	}
	return item
}

type keywordListResponse struct {
	Data map[string]string `json:"data"`
}

type deleteRequest struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type saveKeywordRequest struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}
