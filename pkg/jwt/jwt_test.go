package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mercaldo/pos-api/pkg/jwt"
)

func TestGenerateYParse(t *testing.T) {
	token, err := jwt.Generate("secreto-de-prueba", "user-1", "suc-1", "gerente", "pos-api", 60)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, branchID, role, err := jwt.Parse("secreto-de-prueba", token)
	require.NoError(t, err, "el token recién emitido debe validar")
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "suc-1", branchID)
	assert.Equal(t, "gerente", role)
}

func TestParse_FirmaIncorrecta(t *testing.T) {
	token, err := jwt.Generate("secreto-correcto", "user-1", "suc-1", "cajero", "pos-api", 60)
	require.NoError(t, err)

	_, _, _, err = jwt.Parse("otro-secreto", token)
	assert.Error(t, err, "un token firmado con otro secreto se rechaza")
}

func TestParse_TokenExpirado(t *testing.T) {
	token, err := jwt.Generate("secreto", "user-1", "suc-1", "cajero", "pos-api", -1)
	require.NoError(t, err)

	_, _, _, err = jwt.Parse("secreto", token)
	assert.Error(t, err, "un token vencido se rechaza")
}

func TestGenerate_SecretVacio(t *testing.T) {
	_, err := jwt.Generate("", "user-1", "suc-1", "cajero", "pos-api", 60)
	assert.Error(t, err)
}
