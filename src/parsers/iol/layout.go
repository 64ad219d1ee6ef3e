package iol

import "github.com/username/portafolio/backend/src/parsers/fields"

// BrokerKey identifies InvertirOnline statements.
const BrokerKey = "IOL"

// Column positions of the movements export.
const (
	colNumber = iota
	colTicket
	colType
	colConcertation
	colSettlement
	colStatus
	colQuantity
	colPrice
	colCommission
	colCommissionTax
	colOtherTaxes
	colTotal
	colNotes
	colAccountType

	columnCount
)

var expectedHeaders = []fields.ExpectedHeader{
	{Label: "Nro. de Mov.", Position: colNumber},
	{Label: "Nro. de Boleto", Position: colTicket},
	{Label: "Tipo Mov.", Position: colType},
	{Label: "Concert.", Position: colConcertation},
	{Label: "Liquid.", Position: colSettlement},
	{Label: "Est", Position: colStatus},
	{Label: "Cant. titulos", Position: colQuantity},
	{Label: "Precio", Position: colPrice},
	{Label: "Comis.", Position: colCommission},
	{Label: "Iva Com.", Position: colCommissionTax},
	{Label: "Otros Imp.", Position: colOtherTaxes},
	{Label: "Monto", Position: colTotal},
	{Label: "Observaciones", Position: colNotes},
	{Label: "Tipo Cuenta", Position: colAccountType},
}

// ExpectedHeaders returns a copy of the header layout of the export.
func ExpectedHeaders() []fields.ExpectedHeader {
	out := make([]fields.ExpectedHeader, len(expectedHeaders))
	copy(out, expectedHeaders)
	return out
}
