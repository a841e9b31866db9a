package xlsx

import (
	"archive/zip"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path"
	"strconv"
	"strings"
	"time"
)

type relationshipsDoc struct {
	XMLName xml.Name `xml:"Relationships"`
	Items   []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type workbookDoc struct {
	XMLName xml.Name `xml:"workbook"`
	Sheets  struct {
		Sheet []struct {
			Name string `xml:"name,attr"`
			RID  string `xml:"id,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

type sharedStringsDoc struct {
	XMLName xml.Name `xml:"sst"`
	SI      []struct {
		T string `xml:"t"`
		R []struct {
			T string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

type styleSheetDoc struct {
	XMLName xml.Name `xml:"styleSheet"`
	NumFmts struct {
		NumFmt []struct {
			ID   int    `xml:"numFmtId,attr"`
			Code string `xml:"formatCode,attr"`
		} `xml:"numFmt"`
	} `xml:"numFmts"`
	CellXfs struct {
		Xf []struct {
			NumFmtID int `xml:"numFmtId,attr"`
		} `xml:"xf"`
	} `xml:"cellXfs"`
}

type worksheetDoc struct {
	XMLName   xml.Name `xml:"worksheet"`
	SheetData struct {
		Row []struct {
			C []struct {
				Ref string `xml:"r,attr"`
				S   int    `xml:"s,attr"`
				T   string `xml:"t,attr"`
				V   string `xml:"v"`
			} `xml:"c"`
		} `xml:"row"`
	} `xml:"sheetData"`
}

// Read decodes a workbook file into a map from worksheet name to its sparse
// cell grid, following §4.A's part-relationship resolution order. A missing
// shared-string or styles part is tolerated (treated as empty); everything
// else that fails to parse is a structural error.
func Read(path string) (map[string]*Sheet, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrStructural, path, err)
	}
	defer zr.Close()

	return read(&zr.Reader)
}

func read(zr *zip.Reader) (map[string]*Sheet, error) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	rootRels, err := readRelationships(files, "_rels/.rels")
	if err != nil {
		return nil, err
	}

	workbookPart := ""
	for _, rel := range rootRels.Items {
		if strings.HasSuffix(rel.Type, "/officeDocument") {
			workbookPart = rel.Target
			break
		}
	}
	if workbookPart == "" {
		return nil, fmt.Errorf("%w: no officeDocument relationship in _rels/.rels", ErrStructural)
	}

	var wb workbookDoc
	if err := readXML(files, workbookPart, &wb); err != nil {
		return nil, err
	}

	wbDir := path.Dir(workbookPart)
	wbRelsPart := path.Join(wbDir, "_rels", path.Base(workbookPart)+".rels")
	wbRels, err := readRelationships(files, wbRelsPart)
	if err != nil {
		return nil, err
	}

	targetByRID := make(map[string]string, len(wbRels.Items))
	sharedStringsPart, stylesPart := "", ""
	for _, rel := range wbRels.Items {
		targetByRID[rel.ID] = resolvePartPath(wbDir, rel.Target)
		switch {
		case strings.HasSuffix(rel.Type, "/sharedStrings"):
			sharedStringsPart = resolvePartPath(wbDir, rel.Target)
		case strings.HasSuffix(rel.Type, "/styles"):
			stylesPart = resolvePartPath(wbDir, rel.Target)
		}
	}

	shared, err := readSharedStrings(files, sharedStringsPart)
	if err != nil {
		return nil, err
	}

	numFmtCodes, xfNumFmt, err := readStyles(files, stylesPart)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*Sheet, len(wb.Sheets.Sheet))
	for _, s := range wb.Sheets.Sheet {
		part, ok := targetByRID[s.RID]
		if !ok {
			return nil, fmt.Errorf("%w: sheet %q references unknown relationship %q", ErrStructural, s.Name, s.RID)
		}

		var ws worksheetDoc
		if err := readXML(files, part, &ws); err != nil {
			return nil, err
		}

		sheet := newSheet()
		for _, row := range ws.SheetData.Row {
			for _, c := range row.C {
				r, col, err := ParseCellRef(c.Ref)
				if err != nil {
					return nil, err
				}

				code := "General"
				if c.S == 0 {
					if v, ok := numFmtCodes[0]; ok {
						code = v
					}
				} else if c.S-1 < len(xfNumFmt) {
					if v, ok := numFmtCodes[xfNumFmt[c.S-1]]; ok {
						code = v
					}
				}

				v, err := decodeCell(c.T, code, c.V, shared)
				if err != nil {
					return nil, err
				}
				sheet.Set(r, col, v)
			}
		}

		result[s.Name] = sheet
	}

	return result, nil
}

func decodeCell(typeAttr, numFmtCode, text string, shared []string) (any, error) {
	switch typeAttr {
	case "s":
		idx, err := strconv.Atoi(text)
		if err != nil || idx < 0 || idx >= len(shared) {
			return nil, fmt.Errorf("%w: shared string index %q out of range", ErrStructural, text)
		}
		s := shared[idx]
		if isBytesFormat(numFmtCode) {
			b, err := hex.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("%w: malformed byte-sequence cell %q: %v", ErrStructural, s, err)
			}
			return b, nil
		}
		return s, nil

	case "b":
		return text == "1", nil

	case "e":
		if text == "#N/A" {
			return nil, nil
		}
		return math.NaN(), nil

	case "", "n":
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed numeric cell %q: %v", ErrStructural, text, err)
		}
		if isDateTimeFormat(numFmtCode) && value >= 0 && !math.IsInf(value, 0) {
			return Epoch.Add(time.Duration(value * 24 * float64(time.Hour))), nil
		}
		if forbidsDecimalPoint(numFmtCode) && !containsDot(text) {
			i, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: malformed integer cell %q: %v", ErrStructural, text, err)
			}
			return i, nil
		}
		return value, nil

	default:
		return nil, fmt.Errorf("%w: unrecognised cell type %q", ErrStructural, typeAttr)
	}
}

func readRelationships(files map[string]*zip.File, part string) (*relationshipsDoc, error) {
	var doc relationshipsDoc
	f, ok := files[part]
	if !ok {
		return &doc, nil
	}
	if err := readXML(files, f.Name, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func readSharedStrings(files map[string]*zip.File, part string) ([]string, error) {
	if part == "" {
		return nil, nil
	}
	if _, ok := files[part]; !ok {
		return nil, nil
	}

	var doc sharedStringsDoc
	if err := readXML(files, part, &doc); err != nil {
		return nil, err
	}

	out := make([]string, len(doc.SI))
	for i, si := range doc.SI {
		if si.T != "" || len(si.R) == 0 {
			out[i] = si.T
			continue
		}
		var b strings.Builder
		for _, r := range si.R {
			b.WriteString(r.T)
		}
		out[i] = b.String()
	}
	return out, nil
}

func readStyles(files map[string]*zip.File, part string) (map[int]string, []int, error) {
	numFmtCodes := map[int]string{numFmtGeneral: "General"}
	if part == "" {
		return numFmtCodes, nil, nil
	}
	if _, ok := files[part]; !ok {
		return numFmtCodes, nil, nil
	}

	var doc styleSheetDoc
	if err := readXML(files, part, &doc); err != nil {
		return nil, nil, err
	}

	for _, nf := range doc.NumFmts.NumFmt {
		numFmtCodes[nf.ID] = nf.Code
	}

	xfNumFmt := make([]int, 0, len(doc.CellXfs.Xf))
	for i, xf := range doc.CellXfs.Xf {
		if i == 0 {
			continue // xf index 0 is the reserved default
		}
		xfNumFmt = append(xfNumFmt, xf.NumFmtID)
	}

	return numFmtCodes, xfNumFmt, nil
}

func readXML(files map[string]*zip.File, part string, v any) error {
	f, ok := files[part]
	if !ok {
		return fmt.Errorf("%w: missing part %q", ErrStructural, part)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open part %q: %v", ErrStructural, part, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("%w: read part %q: %v", ErrStructural, part, err)
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parse part %q: %v", ErrStructural, part, err)
	}
	return nil
}

func resolvePartPath(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(baseDir, target))
}
