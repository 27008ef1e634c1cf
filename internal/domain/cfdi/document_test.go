package cfdi_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi/cfditest"
)

func TestDocument_CicloCompleto(t *testing.T) {
	now := time.Date(2024, 5, 10, 11, 0, 0, 0, time.UTC)
	doc := cfdi.NewDocument("doc-1", cfditest.Factura(), now)
	require.Equal(t, cfdi.StatusDraft, doc.Status)

	pasos := []cfdi.Status{
		cfdi.StatusSealed,
		cfdi.StatusStamped,
		cfdi.StatusValid,
		cfdi.StatusCancellationPending,
		cfdi.StatusCancelled,
	}
	for i, s := range pasos {
		require.NoError(t, doc.Transition(s, now.Add(time.Duration(i+1)*time.Minute), ""))
	}
	assert.Equal(t, cfdi.StatusCancelled, doc.Status)
	assert.Len(t, doc.History, len(pasos))
	assert.Equal(t, cfdi.StatusDraft, doc.History[0].From)
	assert.True(t, doc.Status.IsTerminal())
	assert.Equal(t, now.Add(5*time.Minute), doc.UpdatedAt)
}

func TestDocument_TransicionesInvalidas(t *testing.T) {
	casos := []struct {
		from, to cfdi.Status
	}{
		{cfdi.StatusDraft, cfdi.StatusStamped},
		{cfdi.StatusDraft, cfdi.StatusCancelled},
		{cfdi.StatusSealed, cfdi.StatusValid},
		{cfdi.StatusSealed, cfdi.StatusCancelled},
		{cfdi.StatusStamped, cfdi.StatusDraft},
		{cfdi.StatusCancelled, cfdi.StatusValid},
		{cfdi.StatusCancellationPending, cfdi.StatusStamped},
	}
	for _, tc := range casos {
		doc := &cfdi.Document{Status: tc.from}
		err := doc.Transition(tc.to, time.Now(), "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, doc.Status, "el estado no debe cambiar")
		assert.Empty(t, doc.History)
	}
}

func TestDocument_CancelacionRechazadaVuelveAVigente(t *testing.T) {
	doc := &cfdi.Document{Status: cfdi.StatusCancellationPending}
	require.NoError(t, doc.Transition(cfdi.StatusValid, time.Now(), "rechazada por el receptor"))
	assert.Equal(t, "rechazada por el receptor", doc.History[0].Reason)
}

func TestDocument_CancelacionDirecta(t *testing.T) {
	assert.True(t, cfdi.CanTransition(cfdi.StatusStamped, cfdi.StatusCancelled))
	assert.True(t, cfdi.CanTransition(cfdi.StatusValid, cfdi.StatusCancelled))
}

func TestDocument_IsStamped(t *testing.T) {
	assert.False(t, (&cfdi.Document{Status: cfdi.StatusSealed}).IsStamped())
	assert.True(t, (&cfdi.Document{Status: cfdi.StatusValid}).IsStamped())
}
