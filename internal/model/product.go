package model

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// PlaceholderImage é a imagem exibida enquanto nenhum arquivo foi escolhido.
const PlaceholderImage = "/api/placeholder/200/200"

type Product struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl"`
}

// FormattedPrice devolve o preço no formato exibido na listagem (R$ 999.99).
func (p Product) FormattedPrice() string {
	if math.IsInf(p.Price, 0) || math.IsNaN(p.Price) {
		return "R$ -"
	}
	return "R$ " + decimal.NewFromFloat(p.Price).StringFixed(2)
}

func (p Product) HasPreview() bool {
	return p.ImageURL != PlaceholderImage
}

// Draft guarda o formulário de cadastro ainda não enviado.
// Price fica como texto para que "vazio" seja distinguível de zero.
type Draft struct {
	Name     string
	Price    string
	ImageURL string
}

func NewDraft() Draft {
	return Draft{ImageURL: PlaceholderImage}
}

func (d Draft) HasPreview() bool {
	return d.ImageURL != "" && d.ImageURL != PlaceholderImage
}

func (d Draft) Empty() bool {
	return d.Name == "" && d.Price == "" && !d.HasPreview()
}

// EditBuffer é a cópia de trabalho de um produto aberto no modal.
type EditBuffer struct {
	ID       int
	Name     string
	Price    string
	ImageURL string
}

func NewEditBuffer(p Product) EditBuffer {
	return EditBuffer{
		ID:       p.ID,
		Name:     p.Name,
		Price:    strconv.FormatFloat(p.Price, 'f', -1, 64),
		ImageURL: p.ImageURL,
	}
}

// Seed é o catálogo inicial de cada sessão.
func Seed() []Product {
	return []Product{
		{
			ID:       1,
			Name:     "Smartphone XYZ",
			Price:    999.99,
			ImageURL: PlaceholderImage,
		},
	}
}
