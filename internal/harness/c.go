package harness

import (
	"fmt"
	"strings"

	"apex-build/internal/codec"
	"apex-build/internal/judge"
)

// CGenerator implements the harness Generator for C submissions (spec
// §4.B). C has no vector type, so vector<*> parameter/return types are
// rejected here — a test author targeting C should use array_* tags
// instead (documented in DESIGN.md).
type CGenerator struct{}

func (g *CGenerator) Language() judge.Language { return judge.LanguageC }
func (g *CGenerator) SourceExt() string        { return ".c" }

func cPointerType(t judge.TypeTag) (string, error) {
	switch t {
	case judge.TypeInt, judge.TypeArrayInt:
		return "int*", nil
	case judge.TypeFloat, judge.TypeArrayFloat:
		return "float*", nil
	case judge.TypeDouble:
		return "double*", nil
	case judge.TypeChar, judge.TypeArrayChar, judge.TypeString:
		return "char*", nil
	case judge.TypeBool:
		return "bool*", nil
	default:
		return "", fmt.Errorf("harness(c): unsupported parameter type %s", t)
	}
}

func (g *CGenerator) GenerateTestMain(doc codec.ConfigDoc) (string, error) {
	params := splitParams(doc)

	var decls, callArgs, prints []string
	paramTypes := make([]string, 0, len(params))

	for i, p := range params {
		t := judge.TypeTag(p.Type)
		ptrType, err := cPointerType(t)
		if err != nil {
			return "", err
		}
		paramTypes = append(paramTypes, ptrType)

		varName := fmt.Sprintf("p%d_%s", i, sanitizeIdent(p.Name))

		switch t {
		case judge.TypeInt, judge.TypeFloat, judge.TypeDouble, judge.TypeChar, judge.TypeBool:
			lit, err := scalarLiteral(t, p.InputValue)
			if err != nil {
				return "", fmt.Errorf("harness(c): param %s: %w", p.Name, err)
			}
			cType, _ := scalarCType(t)
			decls = append(decls, fmt.Sprintf("%s %s = %s;", cType, varName, lit))
			callArgs = append(callArgs, "&"+varName)
			prints = append(prints, cPrintScalar(p.Name, t, varName))

		case judge.TypeString:
			s, err := asString(p.InputValue)
			if err != nil {
				return "", fmt.Errorf("harness(c): param %s: %w", p.Name, err)
			}
			bufSize := len(s) + 1
			if bufSize < 256 {
				bufSize = 256
			}
			decls = append(decls, fmt.Sprintf("char %s[%d] = %s;", varName, bufSize, cEscapeString(s)))
			callArgs = append(callArgs, varName)
			prints = append(prints, fmt.Sprintf(`printf("%s%%s\n", %s);`, taggedPrintLine(p.Name), varName))

		case judge.TypeArrayInt, judge.TypeArrayFloat, judge.TypeArrayChar:
			elemLits, err := arrayElementLiterals(t, p.InputValue)
			if err != nil {
				return "", fmt.Errorf("harness(c): param %s: %w", p.Name, err)
			}
			n := len(elemLits)
			cType, _ := scalarCType(elementType(t))
			if n == 0 {
				decls = append(decls, fmt.Sprintf("%s %s[1];", cType, varName))
			} else {
				decls = append(decls, fmt.Sprintf("%s %s[%d] = {%s};", cType, varName, n, strings.Join(elemLits, ", ")))
			}
			callArgs = append(callArgs, varName)
			prints = append(prints, cPrintArray(p.Name, elementType(t), varName, n))

		default:
			return "", fmt.Errorf("harness(c): unsupported parameter type %s", t)
		}
	}

	funcType := judge.TypeTag(doc.FunctionType)
	retCType := "void"
	if funcType != judge.TypeVoid && funcType != "" {
		switch funcType {
		case judge.TypeString:
			retCType = "char*"
		default:
			ct, ok := scalarCType(funcType)
			if !ok {
				return "", fmt.Errorf("harness(c): unsupported function_type %s", funcType)
			}
			retCType = ct
		}
	}

	var sb strings.Builder
	sb.WriteString("#include <stdio.h>\n#include <stdbool.h>\n#include <string.h>\n#include <stdlib.h>\n\n")
	sb.WriteString(fmt.Sprintf("%s solve(%s);\n\n", retCType, strings.Join(paramTypes, ", ")))
	sb.WriteString("int main(void) {\n")
	for _, d := range decls {
		sb.WriteString("    " + d + "\n")
	}
	sb.WriteString("\n")

	if retCType == "void" {
		sb.WriteString(fmt.Sprintf("    solve(%s);\n", strings.Join(callArgs, ", ")))
	} else {
		sb.WriteString(fmt.Sprintf("    %s __ret = solve(%s);\n", retCType, strings.Join(callArgs, ", ")))
	}
	sb.WriteString("\n")
	for _, pr := range prints {
		sb.WriteString("    " + pr + "\n")
	}
	if retCType != "void" {
		if retCType == "char*" {
			sb.WriteString(fmt.Sprintf(`    printf("%s%%s\n", __ret);`, taggedPrintLine(judge.ReturnValueKey)) + "\n")
		} else {
			sb.WriteString(cPrintScalarValue(judge.ReturnValueKey, funcType, "__ret") + "\n")
		}
	}
	sb.WriteString("    return 0;\n}\n")

	return sb.String(), nil
}

func (g *CGenerator) CompileArgs(doc codec.ConfigDoc, userFile, driverFile, outputBinary string) (string, []string) {
	flags := strings.Fields(doc.CompilerFlags)
	args := append([]string{"-std=" + doc.Standard()}, flags...)
	args = append(args, "-o", outputBinary, userFile, driverFile, "-lm")
	return "gcc", args
}

// cPrintScalar emits a printf statement for a scalar parameter's final
// value, tagged with its name.
func cPrintScalar(name string, t judge.TypeTag, varName string) string {
	return cPrintScalarValue(name, t, varName)
}

func cPrintScalarValue(name string, t judge.TypeTag, expr string) string {
	tag := taggedPrintLine(name)
	switch t {
	case judge.TypeInt:
		return fmt.Sprintf(`printf("%s%%d\n", %s);`, tag, expr)
	case judge.TypeFloat:
		return fmt.Sprintf(`printf("%s%%.9g\n", (double)%s);`, tag, expr)
	case judge.TypeDouble:
		return fmt.Sprintf(`printf("%s%%.17g\n", %s);`, tag, expr)
	case judge.TypeChar:
		return fmt.Sprintf(`printf("%s%%c\n", %s);`, tag, expr)
	case judge.TypeBool:
		return fmt.Sprintf(`printf("%s%%s\n", (%s) ? "true" : "false");`, tag, expr)
	default:
		return fmt.Sprintf(`printf("%s%%d\n", %s);`, tag, expr)
	}
}

// cPrintArray emits a short loop that prints a fixed-size array as a JSON
// array literal, e.g. "name: [1,2,3]".
func cPrintArray(name string, elemType judge.TypeTag, varName string, n int) string {
	tag := taggedPrintLine(name)
	var fmtSpec string
	var cast string
	switch elemType {
	case judge.TypeInt:
		fmtSpec = "%d"
	case judge.TypeFloat:
		fmtSpec = "%.9g"
		cast = "(double)"
	case judge.TypeChar:
		fmtSpec = "%c"
	default:
		fmtSpec = "%d"
	}
	loopVar := "i_" + sanitizeIdent(name)
	return fmt.Sprintf(
		`printf("%s[");for(int %s=0;%s<%d;%s++){if(%s)printf(",");printf("%s",%s%s[%s]);}printf("]\n");`,
		tag, loopVar, loopVar, n, loopVar, loopVar, fmtSpec, cast, varName, loopVar,
	)
}

func sanitizeIdent(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
