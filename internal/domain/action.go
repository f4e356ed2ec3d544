package domain

// ActionType is the classified tag of a model-issued action.
type ActionType string

// Action tags as they appear in the model's JSON.
const (
	ActionDetectElement ActionType = "detect_ui_element"
	ActionMove          ActionType = "mouse_move"
	ActionClick         ActionType = "mouse_click"
	ActionDoubleClick   ActionType = "double_click"
	ActionRightClick    ActionType = "right_click"
	ActionTypeText      ActionType = "keyboard_type"
	ActionKeyPress      ActionType = "key_press"
	ActionHotkey        ActionType = "hotkey"
	ActionScroll        ActionType = "scroll"
	ActionWait          ActionType = "wait"
	ActionOpenApp       ActionType = "open_app"
	ActionEscape        ActionType = "escape"
	ActionSelectAll     ActionType = "select_all"
	ActionSaveFile      ActionType = "save_file"
	ActionAltTab        ActionType = "alt_tab"
	ActionNewWindow     ActionType = "ctrl_n"
	ActionComplete      ActionType = "complete"
	ActionUnknown       ActionType = "unknown"
)

// actionSpec describes the static properties of one action tag.
type actionSpec struct {
	capability Capability
	gated      bool
}

// actionSpecs is the static tag table. Tags missing from it classify as ActionUnknown.
//
//nolint:gochecknoglobals // Static lookup table
var actionSpecs = map[ActionType]actionSpec{
	ActionDetectElement: {},
	ActionMove:          {capability: CapabilityMouse, gated: true},
	ActionClick:         {capability: CapabilityMouse, gated: true},
	ActionDoubleClick:   {capability: CapabilityMouse, gated: true},
	ActionRightClick:    {capability: CapabilityMouse, gated: true},
	ActionScroll:        {capability: CapabilityMouse, gated: true},
	ActionTypeText:      {capability: CapabilityKeyboard, gated: true},
	ActionKeyPress:      {capability: CapabilityKeyboard, gated: true},
	ActionHotkey:        {capability: CapabilityKeyboard, gated: true},
	ActionEscape:        {capability: CapabilityKeyboard, gated: true},
	ActionSelectAll:     {capability: CapabilityKeyboard, gated: true},
	ActionAltTab:        {capability: CapabilityKeyboard, gated: true},
	ActionNewWindow:     {capability: CapabilityKeyboard, gated: true},
	ActionSaveFile:      {capability: CapabilityFile, gated: true},
	ActionOpenApp:       {capability: CapabilityProcess, gated: true},
	ActionWait:          {},
	ActionComplete:      {},
}

// ClassifyAction maps a normalized tag to its ActionType.
func ClassifyAction(tag string) ActionType {
	t := ActionType(tag)
	if _, ok := actionSpecs[t]; ok {
		return t
	}
	return ActionUnknown
}

// Capability returns the permission that gates the action.
// The boolean is false for actions that have no OS side effect of their own.
func (t ActionType) Capability() (Capability, bool) {
	spec, ok := actionSpecs[t]
	if !ok || !spec.gated {
		return "", false
	}
	return spec.capability, true
}

// KnownActions returns every recognized tag except ActionUnknown.
func KnownActions() []ActionType {
	out := make([]ActionType, 0, len(actionSpecs))
	for t := range actionSpecs {
		out = append(out, t)
	}
	return out
}

// Action is one decoded model decision.
//
// Example JSON representation:
//
//	{
//	    "observation": "desktop with taskbar",
//	    "action": "mouse_click",
//	    "reasoning": "open the start menu",
//	    "parameters": {"x": 24, "y": 1418, "button": "left"},
//	    "task_complete": false
//	}
type Action struct {
	// Type is the classified tag; unrecognized tags become ActionUnknown.
	Type ActionType `json:"type"`

	// Tag is the normalized tag exactly as the model sent it.
	Tag string `json:"action"`

	Reasoning    string `json:"reasoning,omitempty"`
	Observation  string `json:"observation,omitempty"`
	TaskComplete bool   `json:"task_complete"`

	// Params is the raw parameter object.
	Params Params `json:"parameters"`

	// Args holds the typed parameters decoded for Type.
	Args Args `json:"-"`

	// ArgsErr is set when the parameters for Type were missing or of the wrong type.
	// The action is still returned so the controller can record the failure and move on.
	ArgsErr error `json:"-"`
}

// Completes reports whether the action ends the task.
func (a Action) Completes() bool {
	return a.Type == ActionComplete || a.TaskComplete
}
