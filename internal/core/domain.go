package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Field names used in MalformedRecordError and in the upstream payload.
const (
	FieldConsumedEnergy              = "consumedEnergyKwh"
	FieldDistributedGenerationEnergy = "distributedGenerationEnergyKwh"
	FieldOffsetEnergy                = "offsetEnergyKwh"
	FieldEnergyCost                  = "energyCost"
	FieldDistributedGenerationCost   = "distributedGenerationCost"
	FieldIlluminationContribution    = "illuminationContribution"
	FieldCompensationSavings         = "compensationSavings"
	FieldAccountID                   = "accountId"
)

type (
	// Invoice is one billing period for one account.
	Invoice struct {
		AccountID      string
		InstallationID string
		BillingMonth   string // "JAN/24"

		ConsumedEnergyKWh              Amount
		DistributedGenerationEnergyKWh Amount
		OffsetEnergyKWh                Amount

		EnergyCost                Amount
		DistributedGenerationCost Amount
		IlluminationContribution  Amount
		CompensationSavings       Amount
	}

	namedAmount struct {
		name   string
		amount Amount
	}
)

func (inv Invoice) energyFields() []namedAmount {
	return []namedAmount{
		{FieldConsumedEnergy, inv.ConsumedEnergyKWh},
		{FieldDistributedGenerationEnergy, inv.DistributedGenerationEnergyKWh},
		{FieldOffsetEnergy, inv.OffsetEnergyKWh},
	}
}

func (inv Invoice) monetaryFields() []namedAmount {
	return []namedAmount{
		{FieldEnergyCost, inv.EnergyCost},
		{FieldDistributedGenerationCost, inv.DistributedGenerationCost},
		{FieldIlluminationContribution, inv.IlluminationContribution},
		{FieldCompensationSavings, inv.CompensationSavings},
	}
}

// Validate checks the account id and every numeric field. index is copied
// into the returned *MalformedRecordError.
func (inv Invoice) Validate(index int) error {
	if strings.TrimSpace(inv.AccountID) == "" {
		return inv.malformed(index, FieldAccountID, ErrEmptyAccount)
	}
	if err := inv.checkFields(index, inv.energyFields()); err != nil {
		return err
	}
	if err := inv.checkFields(index, inv.monetaryFields()); err != nil {
		return err
	}
	return nil
}

func (inv Invoice) checkFields(index int, fields []namedAmount) *MalformedRecordError {
	for _, f := range fields {
		if err := f.amount.Err(); err != nil {
			return inv.malformed(index, f.name, err)
		}
	}
	return nil
}

func (inv Invoice) malformed(index int, field string, err error) *MalformedRecordError {
	return &MalformedRecordError{
		Index:        index,
		AccountID:    inv.AccountID,
		BillingMonth: inv.BillingMonth,
		Field:        field,
		Err:          err,
	}
}

// wireInvoice accepts both the camelCase names and the snake_case names the
// upstream API emits. camelCase wins when both are present.
type wireInvoice struct {
	AccountID      flexString `json:"accountId"`
	InstallationID flexString `json:"installationId"`
	BillingMonth   flexString `json:"billingMonth"`

	ConsumedEnergyKWh              *Amount `json:"consumedEnergyKwh"`
	DistributedGenerationEnergyKWh *Amount `json:"distributedGenerationEnergyKwh"`
	OffsetEnergyKWh                *Amount `json:"offsetEnergyKwh"`
	EnergyCost                     *Amount `json:"energyCost"`
	DistributedGenerationCost      *Amount `json:"distributedGenerationCost"`
	IlluminationContribution       *Amount `json:"illuminationContribution"`
	CompensationSavings            *Amount `json:"compensationSavings"`

	ClientNumber       flexString `json:"client_number"`
	InstallationNumber flexString `json:"installation_number"`
	ReferenceMonth     flexString `json:"reference_month"`

	EnergiaEletricaKWh     *Amount `json:"energia_eletrica_kwh"`
	EnergiaSCEEKWh         *Amount `json:"energia_scee_kwh"`
	EnergiaCompensadaKWh   *Amount `json:"energia_compensada_kwh"`
	EnergiaEletricaValor   *Amount `json:"energia_eletrica_valor"`
	EnergiaSCEEValor       *Amount `json:"energia_scee_valor"`
	ContribIlumValor       *Amount `json:"contrib_ilum_valor"`
	EnergiaCompensadaValor *Amount `json:"energia_compensada_valor"`
}

// UnmarshalJSON decodes an upstream record. Bad numeric values never fail
// decoding; see Amount.
func (inv *Invoice) UnmarshalJSON(data []byte) error {
	var w wireInvoice
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*inv = Invoice{
		AccountID:                      firstString(w.AccountID, w.ClientNumber),
		InstallationID:                 firstString(w.InstallationID, w.InstallationNumber),
		BillingMonth:                   firstString(w.BillingMonth, w.ReferenceMonth),
		ConsumedEnergyKWh:              firstAmount(w.ConsumedEnergyKWh, w.EnergiaEletricaKWh),
		DistributedGenerationEnergyKWh: firstAmount(w.DistributedGenerationEnergyKWh, w.EnergiaSCEEKWh),
		OffsetEnergyKWh:                firstAmount(w.OffsetEnergyKWh, w.EnergiaCompensadaKWh),
		EnergyCost:                     firstAmount(w.EnergyCost, w.EnergiaEletricaValor),
		DistributedGenerationCost:      firstAmount(w.DistributedGenerationCost, w.EnergiaSCEEValor),
		IlluminationContribution:       firstAmount(w.IlluminationContribution, w.ContribIlumValor),
		CompensationSavings:            firstAmount(w.CompensationSavings, w.EnergiaCompensadaValor),
	}
	return nil
}

// MarshalJSON always writes the camelCase names.
func (inv Invoice) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AccountID                      string `json:"accountId"`
		InstallationID                 string `json:"installationId"`
		BillingMonth                   string `json:"billingMonth"`
		ConsumedEnergyKWh              Amount `json:"consumedEnergyKwh"`
		DistributedGenerationEnergyKWh Amount `json:"distributedGenerationEnergyKwh"`
		OffsetEnergyKWh                Amount `json:"offsetEnergyKwh"`
		EnergyCost                     Amount `json:"energyCost"`
		DistributedGenerationCost      Amount `json:"distributedGenerationCost"`
		IlluminationContribution       Amount `json:"illuminationContribution"`
		CompensationSavings            Amount `json:"compensationSavings"`
	}{
		inv.AccountID, inv.InstallationID, inv.BillingMonth,
		inv.ConsumedEnergyKWh, inv.DistributedGenerationEnergyKWh, inv.OffsetEnergyKWh,
		inv.EnergyCost, inv.DistributedGenerationCost, inv.IlluminationContribution, inv.CompensationSavings,
	})
}

// flexString decodes identifiers that upstream sometimes sends as numbers.
type flexString struct {
	value string
	set   bool
}

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString{value: strings.TrimSpace(s), set: true}
		return nil
	}
	// Numbers are kept verbatim so that leading digits are not reformatted.
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("invalid identifier %s", data)
	}
	*f = flexString{value: string(data), set: true}
	return nil
}

func firstString(values ...flexString) string {
	for _, v := range values {
		if v.set {
			return v.value
		}
	}
	return ""
}

func firstAmount(values ...*Amount) Amount {
	for _, v := range values {
		if v != nil && (v.set || v.err != nil) {
			return *v
		}
	}
	return Amount{err: ErrMissingAmount}
}
