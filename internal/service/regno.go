package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

// Student registration numbers follow YYDDDNNNNN: a two-digit year code,
// a three-letter department code and a five-digit student id.
var (
	regNoPattern = regexp.MustCompile(`^(\d{2})([A-Z]{3})(\d{5})$`)

	validDepartmentCodes = []string{
		"BAC", "BAI", "BAS", "BBA", "BCE", "BCG", "BCY",
		"BEC", "BET", "BEY", "BHI", "BME", "BMR", "BOE",
	}
)

// IsRegistrationNumber reports whether the id is shaped like a student
// registration number. Staff ids (P001, R001) do not qualify.
func IsRegistrationNumber(id string) bool {
	return len(id) == 10 && id[0] >= '0' && id[0] <= '9' && id[1] >= '0' && id[1] <= '9'
}

// ValidateRegistrationNumber validates the full registration number format.
func ValidateRegistrationNumber(regNo string) error {
	if len(regNo) != 10 {
		return appErrors.Clone(appErrors.ErrValidation, "Registration number must be 10 characters (e.g., 24BET10001)")
	}

	match := regNoPattern.FindStringSubmatch(regNo)
	if match == nil {
		return appErrors.Clone(appErrors.ErrValidation, "Invalid format. Expected: YY-XXX-NNNNN (e.g., 24BET10001)")
	}

	year, _ := strconv.Atoi(match[1])
	if year < 20 || year > 29 {
		return appErrors.Clone(appErrors.ErrValidation, "Year code must be between 20-29 (e.g., 24 for 2024)")
	}

	deptCode := match[2]
	valid := false
	for _, code := range validDepartmentCodes {
		if code == deptCode {
			valid = true
			break
		}
	}
	if !valid {
		msg := fmt.Sprintf("Invalid department code '%s'. Valid codes: %s", deptCode, strings.Join(validDepartmentCodes, ", "))
		return appErrors.Clone(appErrors.ErrValidation, msg)
	}

	studentID, _ := strconv.Atoi(match[3])
	if studentID < 10001 || studentID > 19999 {
		return appErrors.Clone(appErrors.ErrValidation, "Student ID must be between 10001-19999")
	}

	return nil
}
