package harness

import (
	"fmt"
	"strings"

	"apex-build/internal/codec"
	"apex-build/internal/judge"
)

// CppGenerator implements the harness Generator for C++ submissions
// (spec §4.B). Mutation uses reference parameters; containers use
// std::vector/std::string rather than fixed stack buffers.
type CppGenerator struct{}

func (g *CppGenerator) Language() judge.Language { return judge.LanguageCpp }
func (g *CppGenerator) SourceExt() string        { return ".cpp" }

func cppRefType(t judge.TypeTag) (string, error) {
	switch t {
	case judge.TypeInt:
		return "int&", nil
	case judge.TypeFloat:
		return "float&", nil
	case judge.TypeDouble:
		return "double&", nil
	case judge.TypeChar:
		return "char&", nil
	case judge.TypeBool:
		return "bool&", nil
	case judge.TypeString:
		return "std::string&", nil
	case judge.TypeArrayInt, judge.TypeVectorInt:
		return "std::vector<int>&", nil
	case judge.TypeArrayFloat, judge.TypeVectorFloat:
		return "std::vector<float>&", nil
	case judge.TypeVectorDouble:
		return "std::vector<double>&", nil
	case judge.TypeArrayChar:
		return "std::vector<char>&", nil
	case judge.TypeVectorString:
		return "std::vector<std::string>&", nil
	default:
		return "", fmt.Errorf("harness(cpp): unsupported parameter type %s", t)
	}
}

func cppReturnType(t judge.TypeTag) (string, error) {
	if t == judge.TypeVoid || t == "" {
		return "void", nil
	}
	switch t {
	case judge.TypeString:
		return "std::string", nil
	case judge.TypeArrayInt, judge.TypeVectorInt:
		return "std::vector<int>", nil
	case judge.TypeArrayFloat, judge.TypeVectorFloat:
		return "std::vector<float>", nil
	case judge.TypeVectorDouble:
		return "std::vector<double>", nil
	case judge.TypeArrayChar:
		return "std::vector<char>", nil
	case judge.TypeVectorString:
		return "std::vector<std::string>", nil
	default:
		ct, ok := scalarCType(t)
		if !ok {
			return "", fmt.Errorf("harness(cpp): unsupported function_type %s", t)
		}
		return ct, nil
	}
}

func (g *CppGenerator) GenerateTestMain(doc codec.ConfigDoc) (string, error) {
	params := splitParams(doc)

	var decls, callArgs, prints []string
	paramTypes := make([]string, 0, len(params))

	for i, p := range params {
		t := judge.TypeTag(p.Type)
		refType, err := cppRefType(t)
		if err != nil {
			return "", err
		}
		paramTypes = append(paramTypes, refType)

		varName := fmt.Sprintf("p%d_%s", i, sanitizeIdent(p.Name))

		switch t {
		case judge.TypeInt, judge.TypeFloat, judge.TypeDouble, judge.TypeChar, judge.TypeBool:
			lit, err := scalarLiteral(t, p.InputValue)
			if err != nil {
				return "", fmt.Errorf("harness(cpp): param %s: %w", p.Name, err)
			}
			cType, _ := scalarCType(t)
			decls = append(decls, fmt.Sprintf("%s %s = %s;", cType, varName, lit))
			callArgs = append(callArgs, varName)
			prints = append(prints, cppPrintScalar(p.Name, t, varName))

		case judge.TypeString:
			s, err := asString(p.InputValue)
			if err != nil {
				return "", fmt.Errorf("harness(cpp): param %s: %w", p.Name, err)
			}
			decls = append(decls, fmt.Sprintf("std::string %s = %s;", varName, cEscapeString(s)))
			callArgs = append(callArgs, varName)
			prints = append(prints, fmt.Sprintf(`std::cout << "%s" << __judge_quote(%s) << "\n";`, taggedPrintLine(p.Name), varName))

		case judge.TypeArrayInt, judge.TypeArrayFloat, judge.TypeArrayChar,
			judge.TypeVectorInt, judge.TypeVectorFloat, judge.TypeVectorDouble:
			elemLits, err := arrayElementLiterals(t, p.InputValue)
			if err != nil {
				return "", fmt.Errorf("harness(cpp): param %s: %w", p.Name, err)
			}
			cppType, _ := cppVectorElemType(t)
			decls = append(decls, fmt.Sprintf("std::vector<%s> %s = {%s};", cppType, varName, strings.Join(elemLits, ", ")))
			callArgs = append(callArgs, varName)
			prints = append(prints, cppPrintVector(p.Name, elementType(t), varName))

		case judge.TypeVectorString:
			elems, err := asArray(p.InputValue)
			if err != nil {
				return "", fmt.Errorf("harness(cpp): param %s: %w", p.Name, err)
			}
			lits := make([]string, 0, len(elems))
			for _, e := range elems {
				s, err := asString(e)
				if err != nil {
					return "", fmt.Errorf("harness(cpp): param %s: %w", p.Name, err)
				}
				lits = append(lits, cEscapeString(s))
			}
			decls = append(decls, fmt.Sprintf("std::vector<std::string> %s = {%s};", varName, strings.Join(lits, ", ")))
			callArgs = append(callArgs, varName)
			prints = append(prints, cppPrintStringVector(p.Name, varName))

		default:
			return "", fmt.Errorf("harness(cpp): unsupported parameter type %s", t)
		}
	}

	funcType := judge.TypeTag(doc.FunctionType)
	retType, err := cppReturnType(funcType)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("#include <iostream>\n#include <vector>\n#include <string>\n#include <iomanip>\n#include <cstdio>\n\n")
	sb.WriteString("static std::string __judge_quote(const std::string& s) {\n")
	sb.WriteString("    std::string out = \"\\\"\";\n")
	sb.WriteString("    for (char c : s) {\n")
	sb.WriteString("        if (c == '\"' || c == '\\\\') out += '\\\\';\n")
	sb.WriteString("        out += c;\n")
	sb.WriteString("    }\n")
	sb.WriteString("    out += \"\\\"\";\n")
	sb.WriteString("    return out;\n")
	sb.WriteString("}\n\n")
	sb.WriteString(fmt.Sprintf("%s solve(%s);\n\n", retType, strings.Join(paramTypes, ", ")))
	sb.WriteString("int main() {\n")
	for _, d := range decls {
		sb.WriteString("    " + d + "\n")
	}
	sb.WriteString("\n")

	if retType == "void" {
		sb.WriteString(fmt.Sprintf("    solve(%s);\n", strings.Join(callArgs, ", ")))
	} else {
		sb.WriteString(fmt.Sprintf("    %s __ret = solve(%s);\n", retType, strings.Join(callArgs, ", ")))
	}
	sb.WriteString("\n")
	for _, pr := range prints {
		sb.WriteString("    " + pr + "\n")
	}
	if retType != "void" {
		sb.WriteString(cppPrintReturn(funcType, retType) + "\n")
	}
	sb.WriteString("    return 0;\n}\n")

	return sb.String(), nil
}

func (g *CppGenerator) CompileArgs(doc codec.ConfigDoc, userFile, driverFile, outputBinary string) (string, []string) {
	flags := strings.Fields(doc.CompilerFlags)
	args := append([]string{"-std=" + doc.Standard()}, flags...)
	args = append(args, "-o", outputBinary, userFile, driverFile)
	return "g++", args
}

func cppVectorElemType(t judge.TypeTag) (string, error) {
	switch elementType(t) {
	case judge.TypeInt:
		return "int", nil
	case judge.TypeFloat:
		return "float", nil
	case judge.TypeDouble:
		return "double", nil
	case judge.TypeChar:
		return "char", nil
	}
	return "", fmt.Errorf("harness(cpp): unsupported vector element for %s", t)
}

func cppPrintScalar(name string, t judge.TypeTag, expr string) string {
	tag := taggedPrintLine(name)
	switch t {
	case judge.TypeDouble:
		return fmt.Sprintf(`std::cout << "%s" << std::setprecision(17) << %s << "\n";`, tag, expr)
	case judge.TypeFloat:
		return fmt.Sprintf(`std::cout << "%s" << std::setprecision(9) << %s << "\n";`, tag, expr)
	case judge.TypeBool:
		return fmt.Sprintf(`std::cout << "%s" << (%s ? "true" : "false") << "\n";`, tag, expr)
	case judge.TypeChar:
		return fmt.Sprintf(`std::cout << "%s" << %s << "\n";`, tag, expr)
	default:
		return fmt.Sprintf(`std::cout << "%s" << %s << "\n";`, tag, expr)
	}
}

func cppPrintReturn(t judge.TypeTag, cppType string) string {
	if t == judge.TypeString {
		return fmt.Sprintf(`std::cout << "%s" << __judge_quote(__ret) << "\n";`, taggedPrintLine(judge.ReturnValueKey))
	}
	switch cppType {
	case "std::vector<int>", "std::vector<float>", "std::vector<double>", "std::vector<char>":
		return cppPrintVector(judge.ReturnValueKey, elementType(t), "__ret")
	case "std::vector<std::string>":
		return cppPrintStringVector(judge.ReturnValueKey, "__ret")
	}
	return cppPrintScalar(judge.ReturnValueKey, t, "__ret")
}

func cppPrintVector(name string, elemType judge.TypeTag, expr string) string {
	tag := taggedPrintLine(name)
	prec := ""
	if elemType == judge.TypeFloat {
		prec = " << std::setprecision(9)"
	}
	return fmt.Sprintf(`{
        std::cout << "%s[";
        for (size_t __i = 0; __i < %s.size(); __i++) {
            if (__i) std::cout << ",";
            std::cout%s << %s[__i];
        }
        std::cout << "]\n";
    }`, tag, expr, prec, expr)
}

func cppPrintStringVector(name string, expr string) string {
	tag := taggedPrintLine(name)
	return fmt.Sprintf(`{
        std::cout << "%s[";
        for (size_t __i = 0; __i < %s.size(); __i++) {
            if (__i) std::cout << ",";
            std::cout << __judge_quote(%s[__i]);
        }
        std::cout << "]\n";
    }`, tag, expr, expr)
}
