package manager

import (
	"errors"
	"fmt"
)

const (
	MsgMissingFields = "Por favor, preencha todos os campos"
	MsgCreated       = "Produto adicionado com sucesso!"
	MsgUpdated       = "Produto atualizado com sucesso!"
	MsgDeleted       = "Produto excluído com sucesso!"
	MsgNotFound      = "Produto não encontrado"
)

var (
	ErrProductNotFound = errors.New("produto não encontrado")
	ErrNotEditing      = errors.New("nenhum produto em edição")
)

// ValidationError indica campos obrigatórios ausentes (ou preço inválido) no
// envio de um formulário. A mensagem é sempre a exibida ao usuário.
type ValidationError struct {
	Form    string
	Missing []string
}

func (e *ValidationError) Error() string {
	return MsgMissingFields
}

func notFound(id int) error {
	return fmt.Errorf("produto %d: %w", id, ErrProductNotFound)
}
