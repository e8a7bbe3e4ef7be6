// Package export writes combined performance reports to Excel workbooks.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/echelon-media/centerboard/internal/report"
)

// headers match the dashboard table column order.
var headers = []string{
	"Centre",
	"Ville",
	"Impressions",
	"Clics",
	"Leads",
	"Vues 30s",
	"Hook Rate (%)",
	"Meta Conv. Rate (%)",
	"CPR",
	"CPM",
	"CTR (%)",
	"Depense",
	"Nb RDV",
	"Concretise",
	"Taux Confirmation (%)",
	"Taux Conversion (%)",
	"Taux Annulation (%)",
	"Taux No-Show (%)",
	"CPL",
	"CPA",
	"Lead vers RDV (%)",
	"Lead vers Vente (%)",
	"Erreurs",
}

// Workbook builds an Excel workbook with one row per center plus a
// summary sheet.
func Workbook(rows []report.CombinedRow, summary report.Summary) (*xlsx.File, error) {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Centres")
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, h := range headers {
		hr.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.CenterName)
		row.AddCell().SetString(r.City)
		row.AddCell().SetInt(r.Impressions)
		row.AddCell().SetInt(r.InlineLinkClicks)
		row.AddCell().SetInt(r.Leads)
		row.AddCell().SetInt(r.Video30sWatched)
		row.AddCell().SetFloat(r.HookRate)
		row.AddCell().SetFloat(r.AdConversionRate)
		row.AddCell().SetFloat(r.CPR)
		row.AddCell().SetFloat(r.CPM)
		row.AddCell().SetFloat(r.CTR)
		row.AddCell().SetFloat(r.Spend)
		row.AddCell().SetInt(r.TotalPlanned)
		row.AddCell().SetInt(r.Concretise)
		row.AddCell().SetFloat(r.ConfirmationRate)
		row.AddCell().SetFloat(r.ConversionRate)
		row.AddCell().SetFloat(r.CancellationRate)
		row.AddCell().SetFloat(r.NoShowRate)
		row.AddCell().SetFloat(r.CPL)
		row.AddCell().SetFloat(r.CPA)
		row.AddCell().SetFloat(r.LeadToAppointmentRate)
		row.AddCell().SetFloat(r.LeadToSaleRate)
		row.AddCell().SetString(errorNote(r))
	}

	if err := addSummarySheet(f, summary); err != nil {
		return nil, err
	}
	return f, nil
}

// Write saves the workbook for the combined report at path.
func Write(path string, rows []report.CombinedRow, summary report.Summary) error {
	f, err := Workbook(rows, summary)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func errorNote(r report.CombinedRow) string {
	switch {
	case r.HasFunnelError && r.HasAdError:
		return "CRM: " + r.FunnelError + "; Ads: " + r.AdError
	case r.HasFunnelError:
		return "CRM: " + r.FunnelError
	case r.HasAdError:
		return "Ads: " + r.AdError
	default:
		return ""
	}
}

func addSummarySheet(f *xlsx.File, s report.Summary) error {
	sheet, err := f.AddSheet("Resume")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	add := func(label string, set func(c *xlsx.Cell)) {
		row := sheet.AddRow()
		row.AddCell().SetString(label)
		set(row.AddCell())
	}

	if s.Err != "" {
		add("Erreur", func(c *xlsx.Cell) { c.SetString(s.Err) })
		return nil
	}

	add("Centres", func(c *xlsx.Cell) { c.SetInt(s.TotalCenters) })
	add("Depense totale", func(c *xlsx.Cell) { c.SetFloat(s.TotalSpend) })
	add("Impressions", func(c *xlsx.Cell) { c.SetInt(s.TotalImpressions) })
	add("Clics", func(c *xlsx.Cell) { c.SetInt(s.TotalClicks) })
	add("Leads", func(c *xlsx.Cell) { c.SetInt(s.TotalLeads) })
	add("RDV", func(c *xlsx.Cell) { c.SetInt(s.TotalPlanned) })
	add("Concretisations", func(c *xlsx.Cell) { c.SetInt(s.TotalConcretise) })
	add("CPA moyen", func(c *xlsx.Cell) { c.SetFloat(s.AvgCPA) })
	add("CPL moyen", func(c *xlsx.Cell) { c.SetFloat(s.AvgCPL) })
	add("CPM pondere", func(c *xlsx.Cell) { c.SetFloat(s.AvgCPM) })
	add("CTR pondere", func(c *xlsx.Cell) { c.SetFloat(s.AvgCTR) })
	add("CPR pondere", func(c *xlsx.Cell) { c.SetFloat(s.AvgCPR) })
	add("Hook rate global", func(c *xlsx.Cell) { c.SetFloat(s.OverallHookRate) })
	add("Lead vers RDV global", func(c *xlsx.Cell) { c.SetFloat(s.OverallLeadToAppointment) })
	add("Lead vers Vente global", func(c *xlsx.Cell) { c.SetFloat(s.OverallLeadToSale) })
	add("Taux conversion global", func(c *xlsx.Cell) { c.SetFloat(s.OverallConversionRate) })
	return nil
}
