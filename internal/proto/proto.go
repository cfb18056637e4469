package proto

import (
	"time"

	"github.com/kurspanel/kurspanel-server/internal/catalog"
	"github.com/kurspanel/kurspanel-server/internal/core"
)

// Outbound envelope types on the websocket push channels.
const (
	OutboundTypeSnapshot = "snapshot"
	OutboundTypeMessage  = "message"
	OutboundTypeError    = "error"
)

// Outbound is one frame on a push channel. Exactly one payload field is set
// according to Type.
type Outbound struct {
	Type    string      `json:"type"`
	Schools []SchoolDTO `json:"schools,omitempty"`
	Message *MessageDTO `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SchoolDTO is the wire form of a school record.
type SchoolDTO struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Candidates map[string]int `json:"candidates"`
}

// MessageDTO is the wire form of a chat message. TS is unix milliseconds.
type MessageDTO struct {
	ID         string `json:"id"`
	SchoolID   string `json:"schoolId"`
	SchoolName string `json:"schoolName"`
	Content    string `json:"content"`
	TS         int64  `json:"ts"`
}

// LoginRequest is the login request body.
type LoginRequest struct {
	SchoolID string `json:"schoolId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the login response body.
type LoginResponse struct {
	Token  string    `json:"token"`
	School SchoolDTO `json:"school"`
}

// CandidatesRequest replaces one school's counts.
type CandidatesRequest struct {
	Candidates map[string]int `json:"candidates" binding:"required"`
}

// AppendMessageRequest appends one chat message.
type AppendMessageRequest struct {
	SchoolID   string `json:"schoolId" binding:"required"`
	SchoolName string `json:"schoolName" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// AppendMessageResponse carries the store-assigned message id.
type AppendMessageResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the REST error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromSchool maps a core school to its wire form.
func FromSchool(s core.School) SchoolDTO {
	counts := make(map[string]int, len(s.Candidates))
	for cat, n := range s.Candidates {
		counts[string(cat)] = n
	}
	return SchoolDTO{ID: s.ID, Name: s.Name, Candidates: counts}
}

// FromSnapshot maps a full snapshot.
func FromSnapshot(snapshot []core.School) []SchoolDTO {
	out := make([]SchoolDTO, len(snapshot))
	for i, s := range snapshot {
		out[i] = FromSchool(s)
	}
	return out
}

// ToSchool maps a wire school back to the core form.
func ToSchool(dto SchoolDTO) core.School {
	counts := make(core.CategoryCounts, len(dto.Candidates))
	for key, n := range dto.Candidates {
		counts[catalog.Category(key)] = n
	}
	return core.School{ID: dto.ID, Name: dto.Name, Candidates: counts}
}

// ToSnapshot maps a wire snapshot back to the core form.
func ToSnapshot(dtos []SchoolDTO) []core.School {
	out := make([]core.School, len(dtos))
	for i, dto := range dtos {
		out[i] = ToSchool(dto)
	}
	return out
}

// FromMessage maps a core message to its wire form.
func FromMessage(m core.Message) MessageDTO {
	return MessageDTO{
		ID:         m.ID,
		SchoolID:   m.SchoolID,
		SchoolName: m.SchoolName,
		Content:    m.Content,
		TS:         m.Timestamp.UnixMilli(),
	}
}

// ToMessage maps a wire message back to the core form.
func ToMessage(dto MessageDTO) core.Message {
	return core.Message{
		ID:         dto.ID,
		SchoolID:   dto.SchoolID,
		SchoolName: dto.SchoolName,
		Content:    dto.Content,
		Timestamp:  time.UnixMilli(dto.TS).UTC(),
	}
}

// ToCounts maps wire counts to the core form.
func ToCounts(counts map[string]int) core.CategoryCounts {
	out := make(core.CategoryCounts, len(counts))
	for key, n := range counts {
		out[catalog.Category(key)] = n
	}
	return out
}
