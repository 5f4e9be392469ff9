package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"campustrade_go/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validate = validator.New()
	// 自定义验证错误缓存
	validationErrorsCache sync.Map

	phoneRegex = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// 初始化验证器
func init() {
	// 与 gin 的 binding 标签保持一致
	validate.SetTagName("binding")
	registerRules(validate)

	// gin 的 binding 标签使用同一套规则
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerRules(v)
	}
}

func registerRules(v *validator.Validate) {
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	v.RegisterValidation("cn_phone", validatePhone)
	v.RegisterValidation("listing_condition", validateCondition)
	v.RegisterValidation("image_uri", validateImageURI)
}

// ValidationError 验证错误结构
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

func (ve *ValidationError) Error() string {
	fields := make([]string, 0, len(ve.Errors))
	for field := range ve.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, ve.Errors[field])
	}
	return strings.Join(msgs, "; ")
}

// Validate 验证结构体
func Validate(obj interface{}) error {
	if err := validate.Struct(obj); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// BindAndValidate 绑定并验证JSON请求体，失败时返回 Validation 错误
func BindAndValidate(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		errorMap := make(map[string]string)
		for _, fe := range fieldErrors {
			errorMap[fe.Field()] = fieldMessage(fe.Field(), fe.Tag(), fe.Param())
		}
		return &AppError{Code: CodeValidation, Message: (&ValidationError{Errors: errorMap}).Error(), Cause: &ValidationError{Errors: errorMap}}
	}
	return &AppError{Code: CodeValidation, Message: "invalid request body", Cause: err}
}

// fieldMessage 获取错误消息
func fieldMessage(field, tag, param string) string {
	cacheKey := field + "_" + tag + "_" + param
	if msg, ok := validationErrorsCache.Load(cacheKey); ok {
		return msg.(string)
	}

	templates := map[string]string{
		"required":          "%s is required",
		"min":               "%s must be at least %s",
		"max":               "%s must be at most %s",
		"gt":                "%s must be greater than %s",
		"gte":               "%s must be greater than or equal to %s",
		"oneof":             "%s must be one of: %s",
		"dive":              "%s is invalid",
		"cn_phone":          "%s must be a valid mobile number",
		"listing_condition": "%s must be one of: " + strings.Join(models.ListingConditions, " "),
		"image_uri":         "%s must be an http(s) or data:image URI",
	}

	var msg string
	if template, ok := templates[tag]; ok {
		if strings.Count(template, "%s") == 2 {
			msg = fmt.Sprintf(template, field, param)
		} else {
			msg = fmt.Sprintf(template, field)
		}
	} else {
		msg = fmt.Sprintf("%s is invalid", field)
	}

	validationErrorsCache.Store(cacheKey, msg)
	return msg
}

// 自定义验证规则

// validatePhone 手机号验证（中国大陆）
func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

// validateCondition 商品成色验证
func validateCondition(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, condition := range models.ListingConditions {
		if value == condition {
			return true
		}
	}
	return false
}

// validateImageURI 图片地址验证
func validateImageURI(fl validator.FieldLevel) bool {
	return IsImageURI(fl.Field().String())
}

// IsImageURI 图片必须是 data:image/ 或 http(s) 地址
func IsImageURI(value string) bool {
	return strings.HasPrefix(value, "data:image/") ||
		strings.HasPrefix(value, "http://") ||
		strings.HasPrefix(value, "https://")
}
