package models

import (
	"github.com/go-playground/validator/v10"
)

// Row is a child record with whatever columns its source returned.
type Row map[string]any

// Expert is a medical expert as stored in the relational database.
type Expert struct {
	ID                string  `db:"record_id" json:"id"`
	APHRANumber       *string `db:"aphra_number" json:"APHRA_Number"`
	FirstName         *string `db:"medical_expert_first_name" json:"Medical_Expert_First_Name"`
	LastName          *string `db:"last_name" json:"Last_Name"`
	DoctorID          *string `db:"doctor_id" json:"Doctor_ID"`
	RecordType        *string `db:"record_type" json:"Record_Type"`
	SectorsAndSchemes []Row   `db:"-" json:"Sectors_and_Schemes"`
}

// CRMExpert is a medical expert as returned by the CRM. Values keep the
// types Zoho sent.
type CRMExpert struct {
	APHRANumber       any   `json:"APHRA_Number"`
	FirstName         any   `json:"Medical_Expert_First_Name"`
	LastName          any   `json:"Last_Name"`
	DoctorID          any   `json:"Doctor_ID"`
	ViniciUserName    any   `json:"Vinici_User_Name"`
	ID                any   `json:"id"`
	SectorsAndSchemes []Row `json:"Sectors_and_Schemes"`
}

type ExpertLookup struct {
	APHRANumber string `validate:"required,alphanum,max=32"`
}

func (l *ExpertLookup) Validate() error {
	validate := validator.New()
	return validate.Struct(l)
}
