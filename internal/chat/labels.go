package chat

import (
	"strings"
	"unicode/utf8"
)

// AgentKind is the closed set of agent types the dashboard
// knows how to color. Anything else is AgentUnknown.
type AgentKind string

const (
	AgentAI      AgentKind = "AI"
	AgentHuman   AgentKind = "HUMAN"
	AgentBot     AgentKind = "BOT"
	AgentUnknown AgentKind = "UNKNOWN"
)

// PlatformKind is the closed set of messaging platforms the
// dashboard knows how to color.
type PlatformKind string

const (
	PlatformWhatsApp  PlatformKind = "WHATSAPP"
	PlatformTelegram  PlatformKind = "TELEGRAM"
	PlatformMessenger PlatformKind = "MESSENGER"
	PlatformSMS       PlatformKind = "SMS"
	PlatformWeb       PlatformKind = "WEB"
	PlatformUnknown   PlatformKind = "UNKNOWN"
)

// Style is the display styling of a badge: utility classes for
// the web UI, a hex color, and an ANSI 256 color for the
// terminal.
type Style struct {
	Bg       string `json:"bg"`
	Text     string `json:"text"`
	Border   string `json:"border,omitempty"`
	Hex      string `json:"hex"`
	Terminal string `json:"-"`
}

// agentStyles has an entry for every AgentKind.
var agentStyles = map[AgentKind]Style{
	AgentAI:      {Bg: "bg-purple-500/15", Text: "text-purple-400", Hex: "#c084fc", Terminal: "135"},
	AgentHuman:   {Bg: "bg-cyan-500/15", Text: "text-cyan-400", Hex: "#22d3ee", Terminal: "51"},
	AgentBot:     {Bg: "bg-pink-500/15", Text: "text-pink-400", Hex: "#f472b6", Terminal: "212"},
	AgentUnknown: {Bg: "bg-slate-500/15", Text: "text-slate-400", Hex: "#94a3b8", Terminal: "246"},
}

// platformStyles has an entry for every PlatformKind.
var platformStyles = map[PlatformKind]Style{
	PlatformWhatsApp:  {Bg: "bg-green-500/15", Text: "text-green-400", Border: "border-green-500", Hex: "#4ade80", Terminal: "42"},
	PlatformTelegram:  {Bg: "bg-blue-500/15", Text: "text-blue-400", Border: "border-blue-500", Hex: "#60a5fa", Terminal: "39"},
	PlatformMessenger: {Bg: "bg-purple-500/15", Text: "text-purple-400", Border: "border-purple-500", Hex: "#c084fc", Terminal: "135"},
	PlatformSMS:       {Bg: "bg-orange-500/15", Text: "text-orange-400", Border: "border-orange-500", Hex: "#fb923c", Terminal: "208"},
	PlatformWeb:       {Bg: "bg-indigo-500/15", Text: "text-indigo-400", Border: "border-indigo-500", Hex: "#818cf8", Terminal: "105"},
	PlatformUnknown:   {Bg: "bg-slate-500/15", Text: "text-slate-400", Border: "border-slate-500", Hex: "#94a3b8", Terminal: "246"},
}

// ParseAgentKind matches s case-insensitively. ok is false when
// s is empty or not one of the known kinds, in which case the
// kind is AgentUnknown.
func ParseAgentKind(s string) (kind AgentKind, ok bool) {
	k := AgentKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case AgentAI, AgentHuman, AgentBot:
		return k, true
	}
	return AgentUnknown, false
}

// ParsePlatformKind matches s case-insensitively. ok is false
// when s is empty or unrecognized.
func ParsePlatformKind(s string) (kind PlatformKind, ok bool) {
	k := PlatformKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case PlatformWhatsApp, PlatformTelegram, PlatformMessenger,
		PlatformSMS, PlatformWeb:
		return k, true
	}
	return PlatformUnknown, false
}

// Known reports whether k is one of the recognized agent types.
func (k AgentKind) Known() bool {
	_, ok := agentStyles[k]
	return ok && k != AgentUnknown
}

// Known reports whether k is one of the recognized platforms.
func (k PlatformKind) Known() bool {
	_, ok := platformStyles[k]
	return ok && k != PlatformUnknown
}

// Style returns the badge style for the kind.
func (k AgentKind) Style() Style {
	if s, ok := agentStyles[k]; ok {
		return s
	}
	return agentStyles[AgentUnknown]
}

// Style returns the badge style for the kind.
func (k PlatformKind) Style() Style {
	if s, ok := platformStyles[k]; ok {
		return s
	}
	return platformStyles[PlatformUnknown]
}

// AgentStyle returns the badge style for a raw agent type.
func AgentStyle(agentType string) Style {
	k, _ := ParseAgentKind(agentType)
	return k.Style()
}

// PlatformStyle returns the badge style for a raw platform.
func PlatformStyle(platform string) Style {
	k, _ := ParsePlatformKind(platform)
	return k.Style()
}

// FormatAgentType renders an agent type badge label.
func FormatAgentType(agentType string) string {
	if agentType == "" {
		return UnknownLabel
	}
	return strings.ToUpper(agentType)
}

// FormatPlatformName capitalizes the first letter and lowers
// the rest: "WHATSAPP" -> "Whatsapp".
func FormatPlatformName(platform string) string {
	if platform == "" {
		return UnknownLabel
	}
	r, size := utf8.DecodeRuneInString(platform)
	return strings.ToUpper(string(r)) + strings.ToLower(platform[size:])
}

// Role classifies a message for transcript layout.
type Role string

const (
	RoleUser  Role = "user"
	RoleAI    Role = "ai"
	RoleOther Role = "other"
)

// RoleOf returns RoleUser for HUMAN messages, RoleAI for AI
// messages and RoleOther for everything else.
func RoleOf(m Message) Role {
	k, _ := ParseAgentKind(m.AgentType)
	switch k {
	case AgentHuman:
		return RoleUser
	case AgentAI:
		return RoleAI
	default:
		return RoleOther
	}
}
