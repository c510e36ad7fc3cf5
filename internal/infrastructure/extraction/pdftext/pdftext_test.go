package pdftext

import (
	"context"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
)

func TestJoinRow(t *testing.T) {
	texts := pdf.TextHorizontal{
		{S: ".00", X: 225.5, W: 15, FontSize: 10},
		{S: "1,350", X: 200, W: 25, FontSize: 10},
		{S: "LA", X: 10, W: 10, FontSize: 10},
		{S: "SUMA", X: 23, W: 20, FontSize: 10},
		{S: "DE", X: 46, W: 10, FontSize: 10},
	}

	// runs closer than a fifth of the font size are glued together
	assert.Equal(t, "LA SUMA DE 1,350.00", joinRow(texts))
}

func TestSource_Lines_RejectsGarbage(t *testing.T) {
	src := NewSource()

	_, err := src.Lines(context.Background(), nil)
	assert.Error(t, err)

	_, err = src.Lines(context.Background(), []byte("not a pdf at all"))
	assert.Error(t, err)
}
