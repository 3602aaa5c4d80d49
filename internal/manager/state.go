package manager

import (
	"prodmanager/internal/model"
	"prodmanager/internal/notify"
)

type Phase int

const (
	Idle Phase = iota
	Creating
	Editing
)

func (p Phase) String() string {
	switch p {
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	default:
		return "idle"
	}
}

// State é uma cópia do estado do gerenciador, segura para renderizar.
type State struct {
	Products     []model.Product
	Draft        model.Draft
	Edit         *model.EditBuffer
	Notification *notify.Notification
}

func (s State) ModalOpen() bool {
	return s.Edit != nil
}

// Notifying é a camada de notificação sobreposta a qualquer fase.
func (s State) Notifying() bool {
	return s.Notification != nil
}

func (s State) Phase() Phase {
	switch {
	case s.Edit != nil:
		return Editing
	case !s.Draft.Empty():
		return Creating
	default:
		return Idle
	}
}
