package conversation

import (
	"fmt"
	"strings"

	apperrors "asset-lookup-bot/internal/common/errors"
	"asset-lookup-bot/internal/lookup/query"
	"asset-lookup-bot/internal/models"
)

func greeting(record models.PermissionRecord) string {
	if record.DisplayName != "" {
		return fmt.Sprintf("Приветствую Вас, %s!", record.DisplayName)
	}
	return "Добро пожаловать!"
}

func chooseBranchText() string {
	return "Выберите филиал:"
}

func unknownBranchText(input string) string {
	return fmt.Sprintf("Филиал «%s» не найден. Выберите филиал из списка:", input)
}

func branchSelectedText(branch string) string {
	return fmt.Sprintf("Выбран филиал %s. Введите номер ТП:", branch)
}

func queryPrompt(record models.PermissionRecord) string {
	if record.DisplayName != "" {
		return fmt.Sprintf("%s, введите номер ТП:", record.DisplayName)
	}
	return "Введите номер ТП:"
}

func noMatchText(record models.PermissionRecord) string {
	return "Совпадений не найдено.\n\n" + queryPrompt(record)
}

func scopeViolationText(input string, record models.PermissionRecord) string {
	return fmt.Sprintf("ТП «%s» находится вне Вашей зоны доступа (РЭС %s). Обратитесь к администратору для расширения прав.\n\n%s",
		input, record.RegionScope, queryPrompt(record))
}

func ambiguousText(input string, result *query.MatchResult) string {
	return fmt.Sprintf("По запросу «%s» найдено %d ТП. Выберите нужную:", input, len(result.Groups))
}

// resultText renders one canonical asset: a header naming the asset and its region,
// then one line per row listing attributes in source column order.
func resultText(group query.Group, record models.PermissionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Найдено записей: %d\n", len(group.Rows))
	fmt.Fprintf(&b, "%s находится в %s РЭС\n", group.Name, strings.Join(regionsOf(group.Rows), ", "))

	for _, row := range group.Rows {
		b.WriteString("\n")
		parts := make([]string, 0, len(row.Attributes))
		for _, a := range row.Attributes {
			parts = append(parts, fmt.Sprintf("%s: %s", a.Key, a.Value))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(queryPrompt(record))
	return b.String()
}

func regionsOf(rows []models.AssetRow) []string {
	var regions []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.RegionTag == "" || seen[r.RegionTag] {
			continue
		}
		seen[r.RegionTag] = true
		regions = append(regions, r.RegionTag)
	}
	if len(regions) == 0 {
		return []string{"неизвестном"}
	}
	return regions
}

func unauthorizedText(operatorID int64) string {
	return fmt.Sprintf("У Вас нет доступа к поиску. Сообщите администратору Ваш ID: %d", operatorID)
}

func errorText(stdErr *apperrors.StandardError) string {
	switch stdErr.Code {
	case apperrors.ErrCodeSourceUnavailable:
		return fmt.Sprintf("Не удалось загрузить данные (%v). Повторите запрос позже.", stdErr.Metadata["source"])
	case apperrors.ErrCodeSchemaMismatch:
		return fmt.Sprintf("Ошибка структуры данных: %s. %s", stdErr.Message, stdErr.Details)
	case apperrors.ErrCodeBranchNotConfigured:
		return fmt.Sprintf("Не задана таблица для филиала %s.", stdErr.Details)
	default:
		return "Внутренняя ошибка. Повторите запрос позже."
	}
}

func outcomeFor(code apperrors.ErrorCode) Outcome {
	switch code {
	case apperrors.ErrCodeSourceUnavailable:
		return OutcomeSourceUnavailable
	case apperrors.ErrCodeSchemaMismatch:
		return OutcomeSchemaMismatch
	case apperrors.ErrCodeUnauthorized:
		return OutcomeUnauthorized
	case apperrors.ErrCodeBranchNotConfigured:
		return OutcomeBranchNotConfigured
	case apperrors.ErrCodeScopeViolation:
		return OutcomeScopeViolation
	default:
		return OutcomeInternal
	}
}
