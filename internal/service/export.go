package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx"

	"github.com/craquetonbudget/bonsplans/internal/models"
)

var exportHeaders = []string{
	"ID", "Nom", "Prix", "Prix d'origine", "Réduction (%)", "Lien d'achat",
	"Image", "Tags", "Favoris", "Créé le",
}

// ExportProducts writes the whole catalog to w as an XLSX workbook.
func (s *AdminService) ExportProducts(ctx context.Context, w io.Writer) error {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return remote("list products", err)
	}
	file, err := productsWorkbook(products)
	if err != nil {
		return err
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func productsWorkbook(products []models.Product) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Produits")
	if err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetString(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetString(p.ID)
		row.AddCell().SetString(p.Name)
		row.AddCell().SetFloat(p.Price.InexactFloat64())
		if orig := p.OriginalPrice(); orig != nil {
			row.AddCell().SetFloat(orig.InexactFloat64())
		} else {
			row.AddCell()
		}
		if p.Discount != nil {
			row.AddCell().SetFloat(p.Discount.InexactFloat64())
		} else {
			row.AddCell()
		}
		row.AddCell().SetString(p.PurchaseURL)
		row.AddCell().SetString(p.ImageURL)
		row.AddCell().SetString(strings.Join(p.Tags, ", "))
		row.AddCell().SetInt64(p.FavoritesCount)
		row.AddCell().SetString(p.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return file, nil
}
