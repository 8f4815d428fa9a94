package pdftest

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Drawn is one text run found in a page's content
type Drawn struct {
	X    float64
	Y    float64
	Font string // BaseFont of the referenced font resource
	Size float64
	Text string
}

var drawnRun = regexp.MustCompile(`1 0 0 1 (-?[0-9.]+) (-?[0-9.]+) cm BT /(\S+) ([0-9.]+) Tf .*? Td \(((?:\\.|[^\\)])*)\) Tj ET`)

// DrawnText decodes the content of a 1-based page and returns every text run
// drawn at a translated origin, in content order.
func DrawnText(data []byte, pageNum int) ([]Drawn, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}

	pageDict, _, attrs, err := ctx.PageDict(pageNum, false)
	if err != nil {
		return nil, err
	}
	if pageDict == nil {
		return nil, fmt.Errorf("page %d not found", pageNum)
	}

	content, err := ctx.PageContent(pageDict, pageNum)
	if err != nil {
		return nil, err
	}

	fonts := make(map[string]string)
	if attrs != nil && attrs.Resources != nil {
		if obj, found := attrs.Resources.Find("Font"); found {
			dict, err := ctx.DereferenceDict(obj)
			if err != nil {
				return nil, err
			}
			for id, ref := range dict {
				fontDict, err := ctx.DereferenceDict(ref)
				if err != nil || fontDict == nil {
					continue
				}
				if name := fontDict.NameEntry("BaseFont"); name != nil {
					fonts[id] = *name
				}
			}
		}
	}

	var runs []Drawn
	for _, m := range drawnRun.FindAllStringSubmatch(string(content), -1) {
		x, _ := strconv.ParseFloat(m[1], 64)
		y, _ := strconv.ParseFloat(m[2], 64)
		size, _ := strconv.ParseFloat(m[4], 64)
		runs = append(runs, Drawn{
			X:    x,
			Y:    y,
			Font: fonts[m[3]],
			Size: size,
			Text: unescape(m[5]),
		})
	}
	return runs, nil
}

func unescape(s string) string {
	r := strings.NewReplacer(`\(`, `(`, `\)`, `)`, `\\`, `\`, `\n`, "\n", `\r`, "\r", `\t`, "\t")
	return r.Replace(s)
}
