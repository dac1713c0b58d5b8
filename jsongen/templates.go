package jsongen

import "text/template"

const headerTemplate = `{{.Banner}}
#pragma once

// NOLINTBEGIN

#include <json/json.h>
#include <vulkan/vulkan.h>

#include <cmath>
#include <string>
#include <sstream>
#include <algorithm>

#include "vksc_pipeline_json_base.hpp"

namespace pcjson {

class GeneratorBase : protected Base {
  private:
{{.Basic}}{{.Handle}}{{.EnumCStr}}
  protected:
{{.Enum}}{{.Flags}}{{.Chain}}
  private:
{{.Contents}}};

}  // namespace pcjson

// NOLINTEND
`

const binaryTemplate = `
    std::string gen_binary(const void* ptr, const size_t size) {
        static const char base64_table[] = "{{.Alphabet}}";

        const uint8_t* data = reinterpret_cast<const uint8_t*>(ptr);
        std::string result;
        result.reserve(((size + 2) / 3) * 4);

        for (size_t src_idx = 0; src_idx < size; src_idx += 3) {
            const size_t num_read = std::min<size_t>(3, size - src_idx);

            uint32_t window = uint32_t(data[src_idx]) << 16;
            if (num_read >= 2) window |= uint32_t(data[src_idx + 1]) << 8;
            if (num_read >= 3) window |= uint32_t(data[src_idx + 2]);

            result.push_back(base64_table[(window >> 18) & 0x3F]);
            result.push_back(base64_table[(window >> 12) & 0x3F]);
            result.push_back(num_read >= 2 ? base64_table[(window >> 6) & 0x3F] : '{{.Pad}}');
            result.push_back(num_read >= 3 ? base64_table[window & 0x3F] : '{{.Pad}}');
        }
        return result;
    }
`

const enumTemplate = `
    Json::Value gen_{{.Name}}(const {{.Name}} v, const LocationScope&) {
        const char* str = gen_{{.Name}}_c_str(v);
        if (str == nullptr) {
            Error() << "Invalid {{.Name}} value: " << {{.Cast}}(v);
            return {{.Cast}}(v);
        }
        return str;
    }
`

const flagsTemplate = `
    Json::Value gen_{{.Name}}(const {{.Name}} v, const LocationScope&) {
        if (v == 0) {
            return 0;
        }

        std::string str{};
        const auto append = [&str](const char* name) {
            if (!str.empty()) {
                str += "{{.Separator}}";
            }
            str += name;
        };

        {{.Name}} consumed = 0;
{{.Multi}}        const {{.Name}} rest = v & ~consumed;
{{.Single}}        if ((rest & ~{{.Name}}({{.Known}})) != 0) {
            Error() << "Invalid {{.Name}} value: " << v;
        }

        if (str.empty()) {
            return 0;
        }
        return str;
    }
`

const noFlagsTemplate = `
    Json::Value gen_{{.Name}}(const {{.Name}} v, const LocationScope&) {
        if (v != 0) {
            Error() << "Invalid {{.Name}} value, flag type has no legal nonzero values: " << v;
        }
        return 0;
    }
`

const chainTemplate = `
    Json::Value gen_{{.Name}}(const {{.Name}}& s, const LocationScope& l) {
        Json::Value json = gen_{{.Name}}_contents(s, l);

        json["sType"] = "{{.Tag}}";

        auto next = reinterpret_cast<const VkBaseInStructure*>(s.pNext);
        Json::Value* json_next = &json["pNext"];

        while (next != nullptr) {
            switch (next->sType) {
{{.Cases}}                default:
                    Error() << "Invalid structure type extending {{.Name}}: " << next->sType;
                    next = nullptr;
                    continue;
            }
            json_next = &(*json_next)["pNext"];
            next = next->pNext;
        }

        *json_next = "NULL";

        return json;
    }
`

const chainCaseTemplate = `                case {{.Tag}}:
                    *json_next = gen_{{.Name}}_contents(*reinterpret_cast<const {{.Name}}*>(next),
                                                        CreateScope("pNext<{{.Name}}>", true));
                    (*json_next)["sType"] = "{{.Tag}}";
                    break;
`

const rootTemplate = `
    Json::Value gen_{{.Name}}(const {{.Name}}& s, const LocationScope& l) { return gen_{{.Name}}_contents(s, l); }
`

const contentsTemplate = `
    Json::Value gen_{{.Name}}_contents(const {{.Name}}& s, const LocationScope&) {
        Json::Value json = Json::objectValue;

{{.Members}}
        return json;
    }
`

// countedTemplate guards array, string array and binary members whose
// length comes from a sibling or an expression
const countedTemplate = `        if (({{.Count}}) == 0 || s.{{.Name}} == nullptr) {
            if (({{.Count}}) != 0) {
                const auto scope = CreateScope("{{.Name}}");
                Error() << "Array has non-zero length " << ({{.Count}}) << " but is NULL";
            } else if (s.{{.Name}} != nullptr) {
                const auto scope = CreateScope("{{.Name}}");
                Warn() << "Array has zero length but is not NULL";
            }
            json["{{.Name}}"] = "NULL";
        } else {
{{.Body}}        }
`

const shaderModuleTemplate = `
    Json::Value gen_VkShaderModuleCreateInfo(const VkShaderModuleCreateInfo& s, const LocationScope& l) {
        Json::Value json = Json::objectValue;
        json["sType"] = "VK_STRUCTURE_TYPE_SHADER_MODULE_CREATE_INFO";
        json["pNext"] = "NULL";
        json["flags"] = 0;
        json["codeSize"] = Json::UInt64(s.codeSize);
        if (s.codeSize == 0 || s.pCode == nullptr) {
            if (s.codeSize != 0) {
                const auto scope = CreateScope("pCode");
                Error() << "Array has non-zero length " << s.codeSize << " but is NULL";
            }
            json["pCode"] = "NULL";
        } else {
            json["pCode"] = gen_binary(s.pCode, s.codeSize);
        }
        return json;
    }
`

var (
	headerTmpl    = template.Must(template.New("header").Parse(headerTemplate))
	binaryTmpl    = template.Must(template.New("binary").Parse(binaryTemplate))
	enumTmpl      = template.Must(template.New("enum").Parse(enumTemplate))
	flagsTmpl     = template.Must(template.New("flags").Parse(flagsTemplate))
	noFlagsTmpl   = template.Must(template.New("noFlags").Parse(noFlagsTemplate))
	chainTmpl     = template.Must(template.New("chain").Parse(chainTemplate))
	chainCaseTmpl = template.Must(template.New("chainCase").Parse(chainCaseTemplate))
	rootTmpl      = template.Must(template.New("root").Parse(rootTemplate))
	contentsTmpl  = template.Must(template.New("contents").Parse(contentsTemplate))
	countedTmpl   = template.Must(template.New("counted").Parse(countedTemplate))
)
