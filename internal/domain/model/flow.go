package model

import (
	"encoding/json"
	"fmt"

	"chatbot-commerce/internal/domain"
)

type ActionType string

const (
	ActionGoToStep      ActionType = "GO_TO_STEP"
	ActionLinkToProduct ActionType = "LINK_TO_PRODUCT"
	ActionMainMenu      ActionType = "MAIN_MENU"
	ActionShowProfile   ActionType = "SHOW_PROFILE"
)

// Runtime-emitted callback tokens. These never appear in a stored flow
// graph; the router mints them while rendering checkout and profile views.
const (
	ActionTypeBuyWithMethod ActionType = "BUY_WITH_METHOD"
	ActionTypeCancelSale    ActionType = "CANCEL_SALE"
	ActionTypeDeleteConfirm ActionType = "DELETE_DATA_CONFIRM"
	ActionTypeDeleteExecute ActionType = "DELETE_DATA_EXECUTE"
)

// Action is the tagged variant carried by a button. Payload meaning depends
// on Type: a step id for GO_TO_STEP, a product id for LINK_TO_PRODUCT,
// empty otherwise.
type Action struct {
	Type    ActionType `json:"type"`
	Payload string     `json:"payload,omitempty"`
}

type Button struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Action Action `json:"action"`
}

type Step struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	MessageTemplate string   `json:"messageTemplate"`
	Buttons         []Button `json:"buttons"`
}

type Flow struct {
	ID             string `json:"id"`
	TriggerCommand string `json:"triggerCommand"`
	StartStepID    string `json:"startStepId"`
	Steps          []Step `json:"steps"`
}

// FlowModel is the full conversation graph of one tenant. It is immutable
// during a conversation turn and replaced wholesale on admin save.
type FlowModel struct {
	Flows []Flow `json:"flows"`
}

// ParseFlowModel decodes a loosely stored flow document. A shape mismatch
// yields (nil, nil): the tenant is simply unconfigured, never a crash.
func ParseFlowModel(raw []byte) (*FlowModel, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var fm FlowModel
	if err := json.Unmarshal(raw, &fm); err != nil {
		return nil, nil
	}
	if len(fm.Flows) == 0 {
		return nil, nil
	}
	return &fm, nil
}

// Validate checks the invariants enforced at admin-save time: resolvable
// start steps and unique ids within each owning collection. References into
// Products are deliberately not checked here; products can be deleted
// independently, so those are render-time concerns.
func (fm *FlowModel) Validate() error {
	if fm == nil {
		return domain.ErrInvalidArgument
	}
	flowIDs := make(map[string]struct{}, len(fm.Flows))
	for _, f := range fm.Flows {
		if f.ID == "" {
			return fmt.Errorf("%w: flow without id", domain.ErrInvalidArgument)
		}
		if _, dup := flowIDs[f.ID]; dup {
			return fmt.Errorf("%w: duplicate flow id %q", domain.ErrInvalidArgument, f.ID)
		}
		flowIDs[f.ID] = struct{}{}

		if f.StartStepID == "" {
			return fmt.Errorf("%w: flow %q has no start step", domain.ErrInvalidArgument, f.ID)
		}
		stepIDs := make(map[string]struct{}, len(f.Steps))
		for _, s := range f.Steps {
			if _, dup := stepIDs[s.ID]; dup {
				return fmt.Errorf("%w: duplicate step id %q in flow %q", domain.ErrInvalidArgument, s.ID, f.ID)
			}
			stepIDs[s.ID] = struct{}{}
			btnIDs := make(map[string]struct{}, len(s.Buttons))
			for _, b := range s.Buttons {
				if _, dup := btnIDs[b.ID]; dup {
					return fmt.Errorf("%w: duplicate button id %q in step %q", domain.ErrInvalidArgument, b.ID, s.ID)
				}
				btnIDs[b.ID] = struct{}{}
			}
		}
		if _, ok := stepIDs[f.StartStepID]; !ok {
			return fmt.Errorf("%w: flow %q start step %q does not exist", domain.ErrInvalidArgument, f.ID, f.StartStepID)
		}
	}
	return nil
}

// FindFlowByTrigger returns the flow whose trigger command matches, or nil.
func (fm *FlowModel) FindFlowByTrigger(cmd string) *Flow {
	if fm == nil {
		return nil
	}
	for i := range fm.Flows {
		if fm.Flows[i].TriggerCommand == cmd {
			return &fm.Flows[i]
		}
	}
	return nil
}

// FindStep resolves a step id across every flow of the tenant, not just the
// flow the conversation started in. Returns nil when dangling.
func (fm *FlowModel) FindStep(stepID string) *Step {
	if fm == nil {
		return nil
	}
	for i := range fm.Flows {
		for j := range fm.Flows[i].Steps {
			if fm.Flows[i].Steps[j].ID == stepID {
				return &fm.Flows[i].Steps[j]
			}
		}
	}
	return nil
}

// StartStep returns the flow's start step, or nil when the reference dangles.
func (f *Flow) StartStep() *Step {
	for i := range f.Steps {
		if f.Steps[i].ID == f.StartStepID {
			return &f.Steps[i]
		}
	}
	return nil
}
