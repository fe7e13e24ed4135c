package campaign

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "github.com/chainsafe/crowdfund-client/pkg/app/errors"
)

const weiDecimals = 18

// MinGoal is the smallest funding goal accepted by the creation form, in ETH
var MinGoal = decimal.RequireFromString("0.01")

// Categories offered by the creation form. The field itself stays an open string.
var Categories = []string{"Technology", "Art", "Education", "Health", "Environment", "Other"}

// CreateRequest is the campaign creation form. Goal is an ETH amount in decimal notation.
type CreateRequest struct {
	Title        string `json:"title" validate:"required,min=5,max=200"`
	Description  string `json:"description" validate:"required,min=20,max=5000"`
	Goal         string `json:"goal" validate:"required"`
	DurationDays int64  `json:"duration_days" validate:"min=1,max=365"`
	Category     string `json:"category" validate:"required,max=64"`
	ImageURL     string `json:"image_url" validate:"omitempty,url"`
}

// ValidCreate is a CreateRequest that passed local validation, with the goal in wei
type ValidCreate struct {
	Title        string
	Description  string
	GoalWei      *big.Int
	DurationDays int64
	Category     string
	ImageURL     string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the form against the local domain rules. On failure it
// returns a validation error carrying one message per invalid field.
func (r CreateRequest) Validate() (*ValidCreate, error) {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Goal = strings.TrimSpace(r.Goal)
	r.Category = strings.TrimSpace(r.Category)
	r.ImageURL = strings.TrimSpace(r.ImageURL)

	fields := map[string]string{}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, apperrors.GeneralError(err)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	var goalWei *big.Int
	if _, bad := fields["goal"]; !bad {
		wei, msg := parseGoal(r.Goal)
		if msg != "" {
			fields["goal"] = msg
		}
		goalWei = wei
	}

	if len(fields) > 0 {
		return nil, apperrors.ValidationError(fields)
	}

	return &ValidCreate{
		Title:        r.Title,
		Description:  r.Description,
		GoalWei:      goalWei,
		DurationDays: r.DurationDays,
		Category:     r.Category,
		ImageURL:     r.ImageURL,
	}, nil
}

func parseGoal(s string) (*big.Int, string) {
	goal, err := decimal.NewFromString(s)
	if err != nil || goal.Sign() <= 0 {
		return nil, "Goal must be a positive number"
	}
	if goal.LessThan(MinGoal) {
		return nil, fmt.Sprintf("Goal must be at least %s ETH", MinGoal)
	}
	wei, err := ToWei(goal)
	if err != nil {
		return nil, "Goal supports at most 18 decimal places"
	}
	return wei, ""
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "title":
		if fe.Tag() == "required" {
			return "Title is required"
		}
		if fe.Tag() == "max" {
			return "Title must be at most 200 characters"
		}
		return "Title must be at least 5 characters"
	case "description":
		if fe.Tag() == "required" {
			return "Description is required"
		}
		if fe.Tag() == "max" {
			return "Description must be at most 5000 characters"
		}
		return "Description must be at least 20 characters"
	case "goal":
		return "Goal amount is required"
	case "duration_days":
		if fe.Tag() == "max" {
			return "Duration cannot exceed 365 days"
		}
		return "Duration must be at least 1 day"
	case "category":
		return "Category is required"
	case "image_url":
		return "Image URL must be a valid URL"
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// ToWei converts an ETH amount to wei. Amounts with more than 18 decimal places are rejected.
func ToWei(eth decimal.Decimal) (*big.Int, error) {
	wei := eth.Shift(weiDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", eth, weiDecimals)
	}
	return wei.BigInt(), nil
}

// ParseEther parses a positive decimal ETH amount into wei
func ParseEther(s string) (*big.Int, error) {
	eth, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if eth.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return ToWei(eth)
}

// FormatEther renders a wei amount in ETH
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -weiDecimals).String()
}
