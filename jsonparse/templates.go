package jsonparse

import "text/template"

const headerTemplate = `{{.Banner}}
#pragma once

// NOLINTBEGIN

#include <json/json.h>
#include <vulkan/vulkan.h>

#include <charconv>
#include <cmath>
#include <limits>
#include <string>
#include <sstream>
#include <string_view>
#include <unordered_map>
#include <algorithm>

#include "vksc_pipeline_json_base.hpp"

namespace pcjson {

class ParserBase : protected Base {
  private:
{{.Basic}}{{.Handle}}
  protected:
{{.Enum}}{{.Flags}}{{.Chain}}
  private:
{{.Contents}}};

}  // namespace pcjson

// NOLINTEND
`

const integerTemplate = `
    {{.Type}} parse_{{.Type}}(const Json::Value& v, const LocationScope&) {
        if (v.{{.Check}}() && v.{{.As}}() >= {{.Min}} && v.{{.As}}() <= {{.Max}}) {
            return {{.Type}}(v.{{.As}}());
        }
        Error() << "Not {{.Desc}}";
        return 0;
    }
`

const wideTemplate = `
    int64_t parse_int64_t(const Json::Value& v, const LocationScope&) {
        if (v.isInt64()) {
            return v.asInt64();
        }
        Error() << "Not a 64-bit signed integer";
        return 0;
    }

    uint64_t parse_uint64_t(const Json::Value& v, const LocationScope&) {
        if (v.isUInt64()) {
            return v.asUInt64();
        }
        if (v.isString()) {
            const std::string str = v.asString();
            uint64_t result = 0;
            const auto [ptr, ec] = std::from_chars(str.data(), str.data() + str.size(), result);
            if (!str.empty() && ec == std::errc() && ptr == str.data() + str.size()) {
                return result;
            }
        }
        Error() << "Not a 64-bit unsigned integer";
        return 0;
    }

    size_t parse_size_t(const Json::Value& v, const LocationScope& l) {
        return size_t(parse_uint64_t(v, l));
    }
`

const floatTemplate = `
    {{.Type}} parse_{{.Type}}(const Json::Value& v, const LocationScope&) {
        if (v.isString() && v.asString() == "NaN") {
            return std::numeric_limits<{{.Type}}>::quiet_NaN();
        }
        if (v.isNumeric()) {
            return {{.Type}}(v.asDouble());
        }
        Error() << "Not a floating point number";
        return 0;
    }
`

const helpersTemplate = `
    uint64_t parse_handle(const Json::Value& v, const LocationScope& l) {
        if (v.isString()) {
            const std::string str = v.asString();
            if (str.empty() || str.find_first_not_of("0123456789") != std::string::npos) {
                // symbolic and blanked handle values carry no object
                return 0;
            }
        }
        return parse_uint64_t(v, l);
    }

    bool is_null(const Json::Value& v) {
        return v.isString() && v.asString() == "NULL";
    }

    const char* parse_string(const Json::Value& v, const LocationScope&) {
        if (!v.isString()) {
            Error() << "Not a string";
            return nullptr;
        }
        const std::string str = v.asString();
        if (str == "NULL") {
            return nullptr;
        }
        char* dst = AllocMem<char>(str.size() + 1);
        std::copy(str.begin(), str.end(), dst);
        dst[str.size()] = '\0';
        return dst;
    }

    void parse_fixed_string(const Json::Value& v, char* dst, const size_t size, const LocationScope&) {
        std::fill(dst, dst + size, '\0');
        if (!v.isString()) {
            Error() << "Not a string";
            return;
        }
        const std::string str = v.asString();
        if (str.size() >= size) {
            Error() << "String is longer than " << (size - 1) << " characters";
            return;
        }
        std::copy(str.begin(), str.end(), dst);
    }

    const void* parse_binary(const Json::Value& json, const size_t expected_size, const LocationScope&) {
        if (json.isArray()) {
            if (json.size() != expected_size) {
                Error() << "Binary size mismatch, expected " << expected_size << " bytes, got " << json.size();
                return nullptr;
            }
            uint8_t* dst = AllocMem<uint8_t>(std::max<size_t>(expected_size, 1));
            for (Json::ArrayIndex i = 0; i < json.size(); ++i) {
                const auto& byte = json[i];
                if (!byte.isUInt() || byte.asUInt() > UINT8_MAX) {
                    Error() << "Not an 8-bit unsigned integer at offset " << i;
                    return nullptr;
                }
                dst[i] = uint8_t(byte.asUInt());
            }
            return dst;
        }

        if (!json.isString()) {
            Error() << "Not a base64 encoded binary";
            return nullptr;
        }

        static constexpr std::string_view base64_table = "{{.Alphabet}}";

        const std::string src = json.asString();
        uint8_t* dst = AllocMem<uint8_t>(std::max<size_t>(src.size() / 4 * 3 + 3, 1));
        size_t dst_size = 0;
        uint32_t window = 0;
        int window_bits = 0;

        for (size_t src_idx = 0; src_idx < src.size(); ++src_idx) {
            const char c = src[src_idx];
            if (c == '{{.Pad}}') {
                break;
            }
            const size_t decoded_bits = base64_table.find(c);
            if (decoded_bits == std::string_view::npos) {
                Error() << "Invalid base64 character '" << c << "' at offset " << src_idx;
                return nullptr;
            }
            window = (window << 6) | uint32_t(decoded_bits);
            window_bits += 6;
            if (window_bits >= 8) {
                window_bits -= 8;
                dst[dst_size++] = uint8_t(window >> window_bits);
            }
        }

        if (dst_size != expected_size) {
            Error() << "Binary size mismatch, expected " << expected_size << " bytes, got " << dst_size;
            return nullptr;
        }
        return dst;
    }
`

const enumTemplate = `
    {{.Name}} parse_{{.Name}}(const Json::Value& json, const LocationScope&) {
        static const std::unordered_map<std::string_view, {{.Name}}> values = {
{{.Values}}        };
        if (json.isString()) {
            const auto it = values.find(json.asCString());
            if (it != values.end()) {
                return it->second;
            }
            Error() << "Invalid {{.Name}} value: " << json.asCString();
        } else {
            Error() << "Invalid {{.Name}} format";
        }
        return {{.Default}};
    }
`

const flagsTemplate = `
    {{.Name}} parse_{{.Name}}(const Json::Value& json, const LocationScope&) {
        static const std::unordered_map<std::string_view, {{.Name}}> values = {
            {"0", 0},
{{.Values}}        };
        if (json.isUInt64() && json.asUInt64() == 0) {
            return 0;
        }
        if (!json.isString()) {
            Error() << "Invalid {{.Name}} format";
            return 0;
        }

        {{.Name}} result = 0;
        std::string_view str = json.asCString();
        while (true) {
            const size_t sep = str.find('|');
            std::string_view token = str.substr(0, sep);
            const size_t first = token.find_first_not_of(" \t\r\n");
            const size_t last = token.find_last_not_of(" \t\r\n");
            token = (first == std::string_view::npos) ? std::string_view{} : token.substr(first, last - first + 1);

            const auto it = values.find(token);
            if (it != values.end()) {
                result |= it->second;
            } else {
                Error() << "Invalid {{.Name}} value: " << token;
            }

            if (sep == std::string_view::npos) {
                break;
            }
            str.remove_prefix(sep + 1);
        }
        return result;
    }
`

const chainTemplate = `
    {{.Name}} parse_{{.Name}}(const Json::Value& json, const LocationScope& l) {
        {{.Name}} s = parse_{{.Name}}_contents(json, l);
        s.sType = {{.Tag}};
        s.pNext = nullptr;

        const auto& json_stype = json["sType"];
        if (!json_stype.isString()) {
            Error() << "Invalid sType format";
        } else if (parse_{{.Discriminator}}(json_stype, CreateScope("sType")) != {{.Tag}}) {
            Error() << "Invalid sType value: " << json_stype.asCString();
        }

        auto prev = reinterpret_cast<VkBaseOutStructure*>(&s);
        const Json::Value* json_next = &json["pNext"];

        while (json_next->isObject()) {
            const auto next_stype = parse_{{.Discriminator}}((*json_next)["sType"], CreateScope("pNext", true));
            VkBaseOutStructure* next = nullptr;
            switch (next_stype) {
{{.Cases}}                default:
                    Error() << "Invalid structure type extending {{.Name}}: " << next_stype;
                    break;
            }
            if (next == nullptr) {
                break;
            }
            next->pNext = nullptr;
            prev->pNext = next;
            prev = next;
            json_next = &(*json_next)["pNext"];
        }

        if (!json_next->isObject() && !is_null(*json_next)) {
            Error() << "Invalid pNext format";
        }

        return s;
    }
`

const chainCaseTemplate = `                case {{.Tag}}: {
                    auto ext = AllocMem<{{.Name}}>();
                    *ext = parse_{{.Name}}_contents(*json_next, CreateScope("pNext<{{.Name}}>", true));
                    ext->sType = {{.Tag}};
                    next = reinterpret_cast<VkBaseOutStructure*>(ext);
                    break;
                }
`

const rootTemplate = `
    {{.Name}} parse_{{.Name}}(const Json::Value& json, const LocationScope& l) { return parse_{{.Name}}_contents(json, l); }
`

const contentsTemplate = `
    {{.Name}} parse_{{.Name}}_contents(const Json::Value& json, const LocationScope&) {
        {{.Name}} s{};
        if (!json.isObject()) {
            Error() << "Not a {{.Name}} object";
            return s;
        }

{{.Members}}
        return s;
    }
`

// countedTemplate reads array members against the length resolved from
// siblings parsed earlier
const countedTemplate = `        {
            const auto& json_member = json["{{.Name}}"];
            const auto count = static_cast<uint32_t>({{.Count}});
            if (is_null(json_member)) {
                if (count != 0) {
                    const auto scope = CreateScope("{{.Name}}");
                    Error() << "Array is NULL but its length is " << count;
                }
                s.{{.Name}} = nullptr;
            } else if (!json_member.isArray()) {
                const auto scope = CreateScope("{{.Name}}");
                Error() << "Not an array";
                s.{{.Name}} = nullptr;
            } else if (json_member.size() != count) {
                const auto scope = CreateScope("{{.Name}}");
                Error() << "Array length " << json_member.size() << " does not match expected length " << count;
                s.{{.Name}} = nullptr;
            } else if (count == 0) {
                const auto scope = CreateScope("{{.Name}}");
                Warn() << "Empty array with zero length, using NULL";
                s.{{.Name}} = nullptr;
            } else {
                auto arr = AllocMem<{{.Elem}}>(count);
                for (uint32_t i = 0; i < count; ++i) {
                    arr[i] = {{.Parse}};
                }
                s.{{.Name}} = arr;
            }
        }
`

const binaryTemplate = `        {
            const auto& json_member = json["{{.Name}}"];
            const auto size = static_cast<size_t>({{.Count}});
            if (is_null(json_member)) {
                if (size != 0) {
                    const auto scope = CreateScope("{{.Name}}");
                    Error() << "Binary is NULL but its size is " << size;
                }
                s.{{.Name}} = nullptr;
            } else {
                s.{{.Name}} = parse_binary(json_member, size, CreateScope("{{.Name}}"));
            }
        }
`

const pointerTemplate = `        {
            const auto& json_member = json["{{.Name}}"];
            if (is_null(json_member)) {
                s.{{.Name}} = nullptr;
            } else {
                auto ptr = AllocMem<{{.Elem}}>();
                *ptr = {{.Parse}};
                s.{{.Name}} = ptr;
            }
        }
`

const shaderModuleTemplate = `
    VkShaderModuleCreateInfo parse_VkShaderModuleCreateInfo(const Json::Value& json, const LocationScope&) {
        VkShaderModuleCreateInfo s{VK_STRUCTURE_TYPE_SHADER_MODULE_CREATE_INFO, nullptr};

        const auto& json_stype = json["sType"];
        if (json_stype.isString()) {
            if (json_stype.asString() != "VK_STRUCTURE_TYPE_SHADER_MODULE_CREATE_INFO") {
                Error() << "Invalid sType value: " << json_stype.asCString();
            }
        } else {
            Error() << "Invalid sType format";
        }

        if (!is_null(json["pNext"])) {
            Error() << "Unexpected non-NULL pNext";
        }

        const auto& json_flags = json["flags"];
        if (!json_flags.isUInt() || json_flags.asUInt() != 0) {
            Error() << "Unexpected non-zero flags";
        }

        s.codeSize = parse_size_t(json["codeSize"], CreateScope("codeSize"));
        s.pCode = reinterpret_cast<const uint32_t*>(parse_binary(json["pCode"], s.codeSize, CreateScope("pCode")));

        return s;
    }
`

var (
	headerTmpl    = template.Must(template.New("header").Parse(headerTemplate))
	integerTmpl   = template.Must(template.New("integer").Parse(integerTemplate))
	floatTmpl     = template.Must(template.New("float").Parse(floatTemplate))
	helpersTmpl   = template.Must(template.New("helpers").Parse(helpersTemplate))
	enumTmpl      = template.Must(template.New("enum").Parse(enumTemplate))
	flagsTmpl     = template.Must(template.New("flags").Parse(flagsTemplate))
	chainTmpl     = template.Must(template.New("chain").Parse(chainTemplate))
	chainCaseTmpl = template.Must(template.New("chainCase").Parse(chainCaseTemplate))
	rootTmpl      = template.Must(template.New("root").Parse(rootTemplate))
	contentsTmpl  = template.Must(template.New("contents").Parse(contentsTemplate))
	countedTmpl   = template.Must(template.New("counted").Parse(countedTemplate))
	binaryTmpl    = template.Must(template.New("binary").Parse(binaryTemplate))
	pointerTmpl   = template.Must(template.New("pointer").Parse(pointerTemplate))
)
