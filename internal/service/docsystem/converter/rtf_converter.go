package converter

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	docsysSvc "docusight/internal/domain/services/docsystem"
)

// rtfDestinations are groups whose content is never document text
var rtfDestinations = map[string]bool{
	"aftncn": true, "aftnsep": true, "aftnsepc": true, "annotation": true, "atnauthor": true,
	"atndate": true, "atnicn": true, "atnid": true, "atnparent": true, "atnref": true,
	"atntime": true, "atrfend": true, "atrfstart": true, "author": true, "background": true,
	"bkmkend": true, "bkmkstart": true, "buptim": true, "category": true, "colortbl": true,
	"comment": true, "company": true, "creatim": true, "datafield": true, "datastore": true,
	"defchp": true, "defpap": true, "do": true, "doccomm": true, "docvar": true,
	"dptxbxtext": true, "falt": true, "fchars": true, "ffdeftext": true, "ffentrymcr": true,
	"ffexitmcr": true, "ffformat": true, "ffhelptext": true, "ffl": true, "ffname": true,
	"ffstattext": true, "file": true, "filetbl": true, "fldinst": true,
	"fldtype": true, "fname": true, "fontemb": true, "fontfile": true, "fonttbl": true,
	"footer": true, "footerf": true, "footerl": true, "footerr": true, "footnote": true,
	"formfield": true, "ftncn": true, "ftnsep": true, "ftnsepc": true, "g": true,
	"generator": true, "gridtbl": true, "header": true, "headerf": true, "headerl": true,
	"headerr": true, "hl": true, "hlfr": true, "hlinkbase": true, "hlloc": true, "hlsrc": true,
	"hsv": true, "htmltag": true, "info": true, "keycode": true, "keywords": true,
	"latentstyles": true, "lchars": true, "levelnumbers": true, "leveltext": true, "lfolevel": true,
	"linkval": true, "list": true, "listlevel": true, "listname": true, "listoverride": true,
	"listoverridetable": true, "listpicture": true, "liststylename": true, "listtable": true,
	"listtext": true, "lsdlockedexcept": true, "macc": true, "maccPr": true, "mailmerge": true,
	"manager": true, "mhtmltag": true, "nesttableprops": true, "nextfile": true, "nonesttables": true,
	"objalias": true, "objclass": true, "objdata": true, "object": true, "objname": true,
	"objsect": true, "objtime": true, "oldcprops": true, "oldpprops": true, "oldsprops": true,
	"oldtprops": true, "operator": true, "panose": true, "password": true, "passwordhash": true,
	"pgp": true, "pgptbl": true, "picprop": true, "pict": true, "pn": true, "pnseclvl": true,
	"pntext": true, "pntxta": true, "pntxtb": true, "printim": true, "private": true,
	"propname": true, "protend": true, "protstart": true, "protusertbl": true, "pxe": true,
	"revtbl": true, "revtim": true, "rsidtbl": true, "rxe": true, "shp": true,
	"shpgrp": true, "shpinst": true, "shppict": true, "shprslt": true, "shptxt": true,
	"sn": true, "sp": true, "staticval": true, "stylesheet": true, "subject": true, "sv": true,
	"svb": true, "tc": true, "template": true, "themedata": true, "title": true, "txe": true,
	"ud": true, "upr": true, "userprops": true, "wgrffmtfilter": true, "windowcaption": true,
	"writereservation": true, "writereservhash": true, "xe": true, "xform": true,
	"xmlattrname": true, "xmlattrvalue": true, "xmlclose": true, "xmlname": true, "xmlnstbl": true,
	"xmlopen": true,
}

// rtfSpecials maps control words to the text they stand for
var rtfSpecials = map[string]string{
	"par": "\n", "sect": "\n\n", "page": "\n\n", "line": "\n", "row": "\n",
	"tab": "\t", "cell": "\t",
	"emdash": "—", "endash": "–", "emspace": " ", "enspace": " ",
	"qmspace": " ", "bullet": "•",
	"lquote": "‘", "rquote": "’", "ldblquote": "“", "rdblquote": "”",
}

// rtfConverter extracts plain text from Rich Text Format documents.
type rtfConverter struct{}

// NewRTFConverter creates a new RTF converter.
func NewRTFConverter() docsysSvc.ContentConverter {
	return &rtfConverter{}
}

// Convert tokenizes the RTF stream, dropping formatting and non-text destinations.
func (c *rtfConverter) Convert(ctx context.Context, input []byte) (string, error) {
	if !strings.HasPrefix(strings.TrimLeft(string(input[:min(len(input), 64)]), " \t\r\n"), `{\rtf`) {
		return "", errors.New("missing {\\rtf header")
	}
	return stripRTF(input), nil
}

type rtfState struct {
	ignorable bool
	ucSkip    int
}

func stripRTF(input []byte) string {
	var out strings.Builder
	stack := []rtfState{}
	state := rtfState{ucSkip: 1}
	skip := 0 // fallback characters still to drop after a \uN

	emit := func(s string) {
		if state.ignorable {
			return
		}
		out.WriteString(s)
	}

	i := 0
	for i < len(input) {
		ch := input[i]

		switch ch {
		case '{':
			stack = append(stack, state)
			skip = 0
			i++
			continue
		case '}':
			if len(stack) > 0 {
				state = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			skip = 0
			i++
			continue
		case '\r', '\n':
			i++
			continue
		case '\\':
		default:
			if skip > 0 {
				skip--
			} else {
				emit(string(charmap.Windows1252.DecodeByte(ch)))
			}
			i++
			continue
		}

		// Control sequence
		i++
		if i >= len(input) {
			break
		}
		next := input[i]

		if !isASCIILetter(next) {
			i++
			switch next {
			case '\\', '{', '}':
				if skip > 0 {
					skip--
				} else {
					emit(string(rune(next)))
				}
			case '~':
				emit(" ")
			case '_':
				emit("-")
			case '*':
				state.ignorable = true
			case '\'':
				if i+2 <= len(input) {
					if b, err := strconv.ParseUint(string(input[i:i+2]), 16, 8); err == nil {
						if skip > 0 {
							skip--
						} else {
							emit(string(charmap.Windows1252.DecodeByte(byte(b))))
						}
					}
					i += 2
				}
			case '\r', '\n':
				emit("\n")
			}
			continue
		}

		start := i
		for i < len(input) && isASCIILetter(input[i]) {
			i++
		}
		word := string(input[start:i])

		paramStart := i
		if i < len(input) && input[i] == '-' {
			i++
		}
		for i < len(input) && input[i] >= '0' && input[i] <= '9' {
			i++
		}
		param, hasParam := 0, false
		if i > paramStart {
			if n, err := strconv.Atoi(string(input[paramStart:i])); err == nil {
				param, hasParam = n, true
			}
		}
		// A single space delimits the control word and is not text
		if i < len(input) && input[i] == ' ' {
			i++
		}

		skip = 0
		switch {
		case rtfDestinations[word]:
			state.ignorable = true
		case word == "uc" && hasParam:
			state.ucSkip = param
		case word == "u" && hasParam:
			if param < 0 {
				param += 65536
			}
			emit(string(rune(param)))
			skip = state.ucSkip
		default:
			if s, ok := rtfSpecials[word]; ok {
				emit(s)
			}
		}
	}

	return out.String()
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// SupportedExtensions returns RTF file extensions.
func (c *rtfConverter) SupportedExtensions() []string {
	return []string{".rtf"}
}

// Name returns the converter name for logging.
func (c *rtfConverter) Name() string {
	return "rtf"
}
