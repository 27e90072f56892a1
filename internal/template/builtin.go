package template

import "crewpager/internal/message"

// Built-in templates. These exist for the process lifetime; they can be
// edited in place but never deleted.
func builtins() map[string]Template {
	return map[string]Template{
		"safety": {
			Name:      "Safety Alert",
			Text:      "Safety Alert: Please wear protective equipment in this area.",
			Icon:      "⚠️",
			Responses: []string{"Understood", "Need Equipment", "Report Issue"},
			Severity:  message.SeverityWarning,
		},
		"break": {
			Name:      "Break Time",
			Text:      "Break time! Please finish current task and take a 15-minute break.",
			Icon:      "☕",
			Responses: []string{"Starting Break", "5 More Minutes", "Almost Done"},
			Severity:  message.SeverityInfo,
		},
		"meeting": {
			Name:      "Team Meeting",
			Text:      "Team meeting in Conference Room A at 2:00 PM. Please attend.",
			Icon:      "📅",
			Responses: []string{"Will Attend", "Running Late", "Cannot Attend"},
			Severity:  message.SeverityInfo,
		},
		"task": {
			Name:      "New Task Assignment",
			Text:      "New task assigned: Check equipment in Zone 3. Priority: Medium.",
			Icon:      "📋",
			Responses: []string{"Accepted", "Need Details", "Busy - Reassign"},
			Severity:  message.SeverityInfo,
		},
		"emergency": {
			Name:      "Emergency Protocol",
			Text:      "EMERGENCY: Evacuate area immediately. Report to muster point.",
			Icon:      "🚨",
			Responses: []string{"Evacuating", "Need Help", "Area Clear"},
			Severity:  message.SeverityEmergency,
		},
		"office": {
			Name:      "Please come to office",
			Text:      "Please come to the office when you have completed your current task.",
			Icon:      "🏢",
			Responses: []string{"On my way", "Need 10 mins", "Cannot come"},
			Severity:  message.SeverityInfo,
		},
		"mood": {
			Name:      "Mood Check",
			Text:      "Quick mood check: How are you feeling today?",
			Icon:      "😊",
			Responses: []string{"😊", "😐", "😞"},
			Severity:  message.SeverityInfo,
		},
	}
}

// builtinOrder keeps listings stable (selector order of the original page).
var builtinOrder = []string{"safety", "break", "meeting", "task", "emergency", "office", "mood"}
