package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

func TestValidateRegistrationNumber(t *testing.T) {
	require.NoError(t, ValidateRegistrationNumber("24BET10001"))
	require.NoError(t, ValidateRegistrationNumber("20BAC19999"))
	require.NoError(t, ValidateRegistrationNumber("29BOE10001"))
}

func TestValidateRegistrationNumberLength(t *testing.T) {
	err := ValidateRegistrationNumber("24BET1000")
	require.Error(t, err)
	assert.Equal(t, "Registration number must be 10 characters (e.g., 24BET10001)", appErrors.FromError(err).Message)
}

func TestValidateRegistrationNumberFormat(t *testing.T) {
	err := ValidateRegistrationNumber("24bet10001")
	require.Error(t, err)
	assert.Equal(t, "Invalid format. Expected: YY-XXX-NNNNN (e.g., 24BET10001)", appErrors.FromError(err).Message)
}

func TestValidateRegistrationNumberYear(t *testing.T) {
	err := ValidateRegistrationNumber("19BET10001")
	require.Error(t, err)
	assert.Equal(t, "Year code must be between 20-29 (e.g., 24 for 2024)", appErrors.FromError(err).Message)

	err = ValidateRegistrationNumber("30BET10001")
	require.Error(t, err)
}

func TestValidateRegistrationNumberDepartment(t *testing.T) {
	err := ValidateRegistrationNumber("24XXX10001")
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "Invalid department code 'XXX'")
	assert.Contains(t, appErrors.FromError(err).Message, "BAC, BAI, BAS, BBA, BCE, BCG, BCY, BEC, BET, BEY, BHI, BME, BMR, BOE")
}

func TestValidateRegistrationNumberStudentID(t *testing.T) {
	err := ValidateRegistrationNumber("24BET10000")
	require.Error(t, err)
	assert.Equal(t, "Student ID must be between 10001-19999", appErrors.FromError(err).Message)

	err = ValidateRegistrationNumber("24BET20000")
	require.Error(t, err)
}

func TestIsRegistrationNumber(t *testing.T) {
	assert.True(t, IsRegistrationNumber("24BET10001"))
	assert.True(t, IsRegistrationNumber("19XYZ99999"))
	assert.False(t, IsRegistrationNumber("P001"))
	assert.False(t, IsRegistrationNumber("R001"))
	assert.False(t, IsRegistrationNumber("ABCDEFGHIJ"))
}
