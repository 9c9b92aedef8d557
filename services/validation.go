package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"bursary-management-api/models"
	"bursary-management-api/utils"

	"github.com/go-playground/validator/v10"
)

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
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return utils.ValidatePhone(fl.Field().String())
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newError(KindValidation, "invalid input: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return newError(KindValidation, "%s", strings.Join(msgs, "; "))
}

// ApplicationInput carries the applicant-supplied fields of a new application.
type ApplicationInput struct {
	Email         string `json:"email" form:"email" validate:"required,email,max=255"`
	FullName      string `json:"full_name" form:"full_name" validate:"required,max=255"`
	Gender        string `json:"gender" form:"gender" validate:"required,oneof=male female"`
	Disability    bool   `json:"disability" form:"disability"`
	IDNumber      string `json:"id_number" form:"id_number" validate:"required,max=50"`
	PhoneNumber   string `json:"phone_number" form:"phone_number" validate:"required,phone"`
	GuardianPhone string `json:"guardian_phone" form:"guardian_phone" validate:"required,phone"`
	GuardianID    string `json:"guardian_id" form:"guardian_id" validate:"required,max=50"`

	Ward          string `json:"ward" form:"ward" validate:"required,oneof=kivaa masinga-central ndithini ekalakala muthesya"`
	Village       string `json:"village" form:"village" validate:"required,max=100"`
	ChiefName     string `json:"chief_name" form:"chief_name" validate:"required,max=255"`
	ChiefPhone    string `json:"chief_phone" form:"chief_phone" validate:"required,phone"`
	SubChiefName  string `json:"sub_chief_name" form:"sub_chief_name" validate:"required,max=255"`
	SubChiefPhone string `json:"sub_chief_phone" form:"sub_chief_phone" validate:"required,phone"`

	LevelOfStudy    string `json:"level_of_study" form:"level_of_study" validate:"required,oneof=degree certificate diploma artisan"`
	InstitutionType string `json:"institution_type" form:"institution_type" validate:"required,oneof=college university"`
	InstitutionName string `json:"institution_name" form:"institution_name" validate:"required,max=255"`
	AdmissionNumber string `json:"admission_number" form:"admission_number" validate:"required,max=100"`
	Amount          uint   `json:"amount" form:"amount" validate:"required,gt=0"`
	ModeOfStudy     string `json:"mode_of_study" form:"mode_of_study" validate:"required,oneof=full-time part-time"`
	YearOfStudy     string `json:"year_of_study" form:"year_of_study" validate:"required,oneof=first-year second-year third-year final-year"`

	FamilyStatus string  `json:"family_status" form:"family_status" validate:"required,oneof=both-parents-alive single-parent partial-orphan total-orphan"`
	FatherIncome *string `json:"father_income" form:"father_income" validate:"omitempty,oneof=low medium high"`
	MotherIncome *string `json:"mother_income" form:"mother_income" validate:"omitempty,oneof=low medium high"`

	Confirmation bool `json:"confirmation" form:"confirmation" validate:"required"`
}

func (in *ApplicationInput) normalize() {
	in.Email = strings.ToLower(utils.SanitizeInput(in.Email))
	in.FullName = utils.SanitizeInput(in.FullName)
	in.IDNumber = utils.SanitizeInput(in.IDNumber)
	in.PhoneNumber = utils.NormalizePhone(in.PhoneNumber)
	in.GuardianPhone = utils.NormalizePhone(in.GuardianPhone)
	in.GuardianID = utils.SanitizeInput(in.GuardianID)
	in.Village = utils.SanitizeInput(in.Village)
	in.ChiefName = utils.SanitizeInput(in.ChiefName)
	in.ChiefPhone = utils.NormalizePhone(in.ChiefPhone)
	in.SubChiefName = utils.SanitizeInput(in.SubChiefName)
	in.SubChiefPhone = utils.NormalizePhone(in.SubChiefPhone)
	in.InstitutionName = utils.SanitizeInput(in.InstitutionName)
	in.AdmissionNumber = utils.SanitizeInput(in.AdmissionNumber)
}

// Validate normalizes and checks the input.
func (in *ApplicationInput) Validate() error {
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}
	return nil
}

func (in *ApplicationInput) toModel() models.Application {
	return models.Application{
		Email:           in.Email,
		FullName:        in.FullName,
		Gender:          in.Gender,
		Disability:      in.Disability,
		IDNumber:        in.IDNumber,
		PhoneNumber:     in.PhoneNumber,
		GuardianPhone:   in.GuardianPhone,
		GuardianID:      in.GuardianID,
		Ward:            in.Ward,
		Village:         in.Village,
		ChiefName:       in.ChiefName,
		ChiefPhone:      in.ChiefPhone,
		SubChiefName:    in.SubChiefName,
		SubChiefPhone:   in.SubChiefPhone,
		LevelOfStudy:    in.LevelOfStudy,
		InstitutionType: in.InstitutionType,
		InstitutionName: in.InstitutionName,
		AdmissionNumber: in.AdmissionNumber,
		Amount:          in.Amount,
		ModeOfStudy:     in.ModeOfStudy,
		YearOfStudy:     in.YearOfStudy,
		FamilyStatus:    in.FamilyStatus,
		FatherIncome:    in.FatherIncome,
		MotherIncome:    in.MotherIncome,
		Confirmation:    in.Confirmation,
	}
}

// EditFields lists the content fields an applicant may change while the
// application is editable. Nil fields are left untouched.
type EditFields struct {
	Email         *string `json:"new_email" validate:"omitempty,email,max=255"`
	FullName      *string `json:"full_name" validate:"omitempty,max=255"`
	Gender        *string `json:"gender" validate:"omitempty,oneof=male female"`
	Disability    *bool   `json:"disability"`
	PhoneNumber   *string `json:"phone_number" validate:"omitempty,phone"`
	GuardianPhone *string `json:"guardian_phone" validate:"omitempty,phone"`
	GuardianID    *string `json:"guardian_id" validate:"omitempty,max=50"`

	Ward          *string `json:"ward" validate:"omitempty,oneof=kivaa masinga-central ndithini ekalakala muthesya"`
	Village       *string `json:"village" validate:"omitempty,max=100"`
	ChiefName     *string `json:"chief_name" validate:"omitempty,max=255"`
	ChiefPhone    *string `json:"chief_phone" validate:"omitempty,phone"`
	SubChiefName  *string `json:"sub_chief_name" validate:"omitempty,max=255"`
	SubChiefPhone *string `json:"sub_chief_phone" validate:"omitempty,phone"`

	LevelOfStudy    *string `json:"level_of_study" validate:"omitempty,oneof=degree certificate diploma artisan"`
	InstitutionType *string `json:"institution_type" validate:"omitempty,oneof=college university"`
	InstitutionName *string `json:"institution_name" validate:"omitempty,max=255"`
	AdmissionNumber *string `json:"admission_number" validate:"omitempty,max=100"`
	Amount          *uint   `json:"amount" validate:"omitempty,gt=0"`
	ModeOfStudy     *string `json:"mode_of_study" validate:"omitempty,oneof=full-time part-time"`
	YearOfStudy     *string `json:"year_of_study" validate:"omitempty,oneof=first-year second-year third-year final-year"`

	FamilyStatus *string `json:"family_status" validate:"omitempty,oneof=both-parents-alive single-parent partial-orphan total-orphan"`
	FatherIncome *string `json:"father_income" validate:"omitempty,oneof=low medium high"`
	MotherIncome *string `json:"mother_income" validate:"omitempty,oneof=low medium high"`
}

// Validate checks the supplied fields.
func (f *EditFields) Validate() error {
	if err := validate.Struct(f); err != nil {
		return validationError(err)
	}
	return nil
}

// columns maps the non-nil fields to store column names.
func (f *EditFields) columns() map[string]any {
	cols := make(map[string]any)
	setStr := func(col string, v *string, clean func(string) string) {
		if v != nil {
			cols[col] = clean(*v)
		}
	}
	lower := func(s string) string { return strings.ToLower(utils.SanitizeInput(s)) }

	setStr("email", f.Email, lower)
	setStr("full_name", f.FullName, utils.SanitizeInput)
	setStr("gender", f.Gender, utils.SanitizeInput)
	if f.Disability != nil {
		cols["disability"] = *f.Disability
	}
	setStr("phone_number", f.PhoneNumber, utils.NormalizePhone)
	setStr("guardian_phone", f.GuardianPhone, utils.NormalizePhone)
	setStr("guardian_id", f.GuardianID, utils.SanitizeInput)
	setStr("ward", f.Ward, utils.SanitizeInput)
	setStr("village", f.Village, utils.SanitizeInput)
	setStr("chief_name", f.ChiefName, utils.SanitizeInput)
	setStr("chief_phone", f.ChiefPhone, utils.NormalizePhone)
	setStr("sub_chief_name", f.SubChiefName, utils.SanitizeInput)
	setStr("sub_chief_phone", f.SubChiefPhone, utils.NormalizePhone)
	setStr("level_of_study", f.LevelOfStudy, utils.SanitizeInput)
	setStr("institution_type", f.InstitutionType, utils.SanitizeInput)
	setStr("institution_name", f.InstitutionName, utils.SanitizeInput)
	setStr("admission_number", f.AdmissionNumber, utils.SanitizeInput)
	if f.Amount != nil {
		cols["amount"] = *f.Amount
	}
	setStr("mode_of_study", f.ModeOfStudy, utils.SanitizeInput)
	setStr("year_of_study", f.YearOfStudy, utils.SanitizeInput)
	setStr("family_status", f.FamilyStatus, utils.SanitizeInput)
	if f.FatherIncome != nil {
		v := utils.SanitizeInput(*f.FatherIncome)
		cols["father_income"] = &v
	}
	if f.MotherIncome != nil {
		v := utils.SanitizeInput(*f.MotherIncome)
		cols["mother_income"] = &v
	}
	return cols
}
