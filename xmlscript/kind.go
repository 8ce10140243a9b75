package xmlscript

import "github.com/helidon-io/archetype-engine/ast"

// kindForTag maps an XML element's tag name to an ast.Kind. A handful of
// tags (boolean/text/enum/list) are reused across <inputs>, <presets> and
// <variables>, so their Kind also depends on the nearest structural
// ancestor; "list" is additionally reused under <model> for MODEL_LIST.
func kindForTag(tag string, parent ast.Kind) (ast.Kind, bool) {
	switch tag {
	case "archetype-script":
		return ast.KindArchetypeScript, true
	case "methods":
		return ast.KindMethods, true
	case "method":
		return ast.KindMethod, true
	case "step":
		return ast.KindStep, true
	case "inputs":
		return ast.KindInputs, true
	case "presets":
		return ast.KindPresets, true
	case "variables":
		return ast.KindVariables, true
	case "output":
		return ast.KindOutput, true
	case "file":
		return ast.KindFile, true
	case "files":
		return ast.KindFiles, true
	case "template":
		return ast.KindTemplate, true
	case "templates":
		return ast.KindTemplates, true
	case "transformation":
		return ast.KindTransformation, true
	case "replace":
		return ast.KindReplace, true
	case "includes":
		return ast.KindIncludes, true
	case "include":
		return ast.KindInclude, true
	case "excludes":
		return ast.KindExcludes, true
	case "exclude":
		return ast.KindExclude, true
	case "model":
		return ast.KindModel, true
	case "validations":
		return ast.KindValidations, true
	case "validation":
		return ast.KindValidation, true
	case "regex":
		return ast.KindRegex, true
	case "exec":
		return ast.KindExec, true
	case "source":
		return ast.KindSource, true
	case "call":
		return ast.KindCall, true
	case "option":
		return ast.KindOption, true
	case "map":
		if parent == ast.KindModel || parent == ast.KindModelMap || parent == ast.KindModelList || parent == ast.KindModelValue {
			return ast.KindModelMap, true
		}
		return ast.KindUnknown, false
	case "value":
		if parent == ast.KindModel || parent == ast.KindModelMap || parent == ast.KindModelList {
			return ast.KindModelValue, true
		}
		return ast.KindUnknown, false
	case "list":
		if parent == ast.KindModel || parent == ast.KindModelMap || parent == ast.KindModelList || parent == ast.KindModelValue {
			return ast.KindModelList, true
		}
		return declKind(parent, ast.KindInputList, ast.KindPresetList, ast.KindVariableList), true
	case "boolean":
		return declKind(parent, ast.KindInputBoolean, ast.KindPresetBoolean, ast.KindVariableBoolean), true
	case "text":
		return declKind(parent, ast.KindInputText, ast.KindPresetText, ast.KindVariableText), true
	case "enum":
		return declKind(parent, ast.KindInputEnum, ast.KindPresetEnum, ast.KindVariableEnum), true
	}
	return ast.KindUnknown, false
}

// declKind picks the INPUT_*/PRESET_*/VARIABLE_* variant of a declaration
// tag reused across <inputs>, <presets> and <variables> (also nested under
// <option> or <step> for follow-up inputs, which default to the INPUT_*
// variant).
func declKind(parent ast.Kind, inputKind, presetKind, variableKind ast.Kind) ast.Kind {
	switch parent {
	case ast.KindPresets:
		return presetKind
	case ast.KindVariables:
		return variableKind
	default:
		return inputKind
	}
}

// tagForKind is the inverse mapping used by the writer; declaration
// variants collapse back onto their shared tag name.
func tagForKind(k ast.Kind) string {
	switch k {
	case ast.KindArchetypeScript:
		return "archetype-script"
	case ast.KindMethods:
		return "methods"
	case ast.KindMethod:
		return "method"
	case ast.KindStep:
		return "step"
	case ast.KindInputs:
		return "inputs"
	case ast.KindPresets:
		return "presets"
	case ast.KindVariables:
		return "variables"
	case ast.KindOutput:
		return "output"
	case ast.KindFile:
		return "file"
	case ast.KindFiles:
		return "files"
	case ast.KindTemplate:
		return "template"
	case ast.KindTemplates:
		return "templates"
	case ast.KindTransformation:
		return "transformation"
	case ast.KindReplace:
		return "replace"
	case ast.KindIncludes:
		return "includes"
	case ast.KindInclude:
		return "include"
	case ast.KindExcludes:
		return "excludes"
	case ast.KindExclude:
		return "exclude"
	case ast.KindModel:
		return "model"
	case ast.KindModelValue:
		return "value"
	case ast.KindModelList:
		return "list"
	case ast.KindModelMap:
		return "map"
	case ast.KindValidations:
		return "validations"
	case ast.KindValidation:
		return "validation"
	case ast.KindRegex:
		return "regex"
	case ast.KindExec:
		return "exec"
	case ast.KindSource:
		return "source"
	case ast.KindCall:
		return "call"
	case ast.KindOption:
		return "option"
	case ast.KindInputBoolean, ast.KindPresetBoolean, ast.KindVariableBoolean:
		return "boolean"
	case ast.KindInputText, ast.KindPresetText, ast.KindVariableText:
		return "text"
	case ast.KindInputEnum, ast.KindPresetEnum, ast.KindVariableEnum:
		return "enum"
	case ast.KindInputList, ast.KindPresetList, ast.KindVariableList:
		return "list"
	default:
		return "unknown"
	}
}
