package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rentbot/internal/models"
	"rentbot/internal/services"
)

const (
	dataBook    = "book"
	dataList    = "list"
	dataBack    = "back"
	dataDate    = "date"
	dataHour    = "hour"
	dataMinute  = "minute"
	dataCount   = "count"
	dataSet     = "set"
	dataSetHour = "set_hour"
	dataBoard   = "board"
	dataHydro   = "hydro"
	dataPhone   = "phone"
	dataApply   = "apply"
	dataBusy    = "busy"
	dataDetails = "details"
	dataCancel  = "cancel"
	dataNotify  = "notify"
)

const (
	maxSets      = 6
	maxHours     = 4
	maxCount     = 10
	dateLayout   = "02.01.2006"
	dateArgument = "2006-01-02"
)

func arg(prefix string, v any) string {
	return fmt.Sprintf("%s:%v", prefix, v)
}

func dayName(day time.Weekday) string {
	daysMap := map[time.Weekday]string{
		time.Monday:    "Понедельник",
		time.Tuesday:   "Вторник",
		time.Wednesday: "Среда",
		time.Thursday:  "Четверг",
		time.Friday:    "Пятница",
		time.Saturday:  "Суббота",
		time.Sunday:    "Воскресенье",
	}
	return daysMap[day]
}

func yesNo(v int) string {
	if v > 0 {
		return "да"
	}
	return "нет"
}

func (p *Processor) mainMenu() Response {
	return Response{
		Text: fmt.Sprintf("*%s*\n\nВыберите действие:", p.kind.Title()),
		Keyboard: [][]Button{
			row(btn("📝 Забронировать", dataBook), btn("📋 Брони", dataList)),
			row(btn("✖️ Закрыть", dataBack)),
		},
		ParseMode: "Markdown",
	}
}

// bookMenu показывает черновик. taken < 0 - время ещё не выбрано.
func (p *Processor) bookMenu(r *models.Reserve, taken int) Response {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 %s: бронирование\n\n", p.kind.Title())

	if r.StartDate != nil {
		fmt.Fprintf(&sb, "📅 Дата: %s (%s)\n", r.StartDate.Format(dateLayout), dayName(r.StartDate.Weekday()))
	} else {
		sb.WriteString("📅 Дата: не выбрана\n")
	}
	if r.StartTime != nil {
		fmt.Fprintf(&sb, "🕒 Время: %s\n", r.StartTime)
	} else {
		sb.WriteString("🕒 Время: не выбрано\n")
	}
	fmt.Fprintf(&sb, "⏱ Длительность: %s\n", durationText(r))
	if p.kind.CountBearing() {
		fmt.Fprintf(&sb, "🔢 Количество: %d\n", r.Count)
	}
	if r.Wake != nil {
		fmt.Fprintf(&sb, "🏄 Доска: %s, гидрик: %s\n", yesNo(r.Wake.Board), yesNo(r.Wake.Hydro))
	}
	if r.User != nil && r.User.Phone != "" {
		fmt.Fprintf(&sb, "📱 Телефон: %s\n", r.User.Phone)
	} else {
		sb.WriteString("📱 Телефон: не указан\n")
	}
	if taken >= 0 {
		free := p.service.Capacity() - taken
		if free < r.Count {
			sb.WriteString("\n⚠️ На это время всё занято")
		} else {
			fmt.Fprintf(&sb, "\n🟢 Свободно: %d из %d", free, p.service.Capacity())
		}
	}

	keyboard := [][]Button{
		row(btn("📅 Дата", dataDate), btn("🕒 Время", dataHour)),
	}
	if p.kind == models.KindBathhouse {
		keyboard = append(keyboard, row(btn("⏱ Часы", dataSetHour)))
	} else {
		keyboard = append(keyboard, row(btn("⏱ Сеты", dataSet), btn("⏱ Часы", dataSetHour)))
	}
	if p.kind.CountBearing() {
		keyboard = append(keyboard, row(btn("🔢 Количество", dataCount)))
	}
	if r.Wake != nil {
		keyboard = append(keyboard, row(btn("🏄 Доска", dataBoard), btn("🪂 Гидрик", dataHydro)))
	}
	keyboard = append(keyboard,
		row(btn("📱 Телефон", dataPhone)),
		row(btn("✅ Забронировать", dataApply)),
		backRow(),
	)
	return Response{Text: sb.String(), Keyboard: keyboard}
}

func durationText(r *models.Reserve) string {
	if r.SetKind == models.SetKindHour {
		return fmt.Sprintf("%d ч.", r.SetCount)
	}
	return fmt.Sprintf("%d x %d мин.", r.SetCount, r.Kind.UnitMinutes(r.SetKind))
}

func (p *Processor) dateMenu(today time.Time) Response {
	var keyboard [][]Button
	for i := 0; i < p.bookDays; i++ {
		date := today.AddDate(0, 0, i)
		text := fmt.Sprintf("📅 %s, %s", dayName(date.Weekday()), date.Format("02.01"))
		if i == 0 {
			text = "🔵 Сегодня, " + date.Format("02.01")
		} else if i == 1 {
			text = "🔵 Завтра, " + date.Format("02.01")
		}
		keyboard = append(keyboard, row(btn(text, arg(dataDate, date.Format(dateArgument)))))
	}
	keyboard = append(keyboard, backRow())
	return Response{Text: "Выберите день:", Keyboard: keyboard}
}

func (p *Processor) hourMenu(date time.Time, slots []services.TimeSlot) Response {
	var keyboard [][]Button
	var current []Button
	for _, slot := range slots {
		timeStr := fmt.Sprintf("%02d:00", slot.Hour)
		b := btn("🔵 "+timeStr, arg(dataHour, slot.Hour))
		if !slot.Available {
			b = btn("🔴 "+timeStr, dataBusy)
		}
		current = append(current, b)
		if len(current) == 3 {
			keyboard = append(keyboard, current)
			current = nil
		}
	}
	if len(current) > 0 {
		keyboard = append(keyboard, current)
	}
	keyboard = append(keyboard, backRow())
	return Response{
		Text:     fmt.Sprintf("Выберите время на %s, %s:", dayName(date.Weekday()), date.Format(dateLayout)),
		Keyboard: keyboard,
	}
}

func (p *Processor) minuteStep() int {
	step := p.kind.UnitMinutes(models.SetKindSet)
	if step < 10 {
		step = 15
	}
	return step
}

func (p *Processor) minuteMenu(hour int) Response {
	var keyboard [][]Button
	var current []Button
	for m := 0; m < 60; m += p.minuteStep() {
		current = append(current, btn(fmt.Sprintf("%02d:%02d", hour, m), arg(dataMinute, m)))
		if len(current) == 3 {
			keyboard = append(keyboard, current)
			current = nil
		}
	}
	if len(current) > 0 {
		keyboard = append(keyboard, current)
	}
	keyboard = append(keyboard, backRow())
	return Response{Text: "Уточните минуты:", Keyboard: keyboard}
}

func numberMenu(text, prefix string, limit int) Response {
	var keyboard [][]Button
	var current []Button
	for i := 1; i <= limit; i++ {
		current = append(current, btn(strconv.Itoa(i), arg(prefix, i)))
		if len(current) == 5 {
			keyboard = append(keyboard, current)
			current = nil
		}
	}
	if len(current) > 0 {
		keyboard = append(keyboard, current)
	}
	keyboard = append(keyboard, backRow())
	return Response{Text: text, Keyboard: keyboard}
}

func (p *Processor) setMenu() Response {
	return numberMenu(fmt.Sprintf("Сколько сетов по %d мин.?", p.kind.UnitMinutes(models.SetKindSet)), dataSet, maxSets)
}

func (p *Processor) setHourMenu() Response {
	return numberMenu("Сколько часов?", dataSetHour, maxHours)
}

func (p *Processor) countMenu() Response {
	limit := p.service.Capacity()
	if limit > maxCount {
		limit = maxCount
	}
	return numberMenu("Сколько нужно?", dataCount, limit)
}

func phonePrompt() Response {
	return Response{
		Text:           "📱 Отправьте контакт кнопкой ниже или введите номер телефона\nПример: +79991234567",
		RequestContact: true,
	}
}

func (p *Processor) listMenu(reserves []*models.Reserve) Response {
	var sb strings.Builder
	var keyboard [][]Button

	if len(reserves) == 0 {
		sb.WriteString("Активных броней нет.")
	} else {
		sb.WriteString("📋 Активные брони:\n\n")
	}
	for _, r := range reserves {
		sb.WriteString(r.Summary() + "\n")
		label := fmt.Sprintf("#%d", r.ID)
		if start, ok := r.Start(); ok {
			label = fmt.Sprintf("%s %s", start.Format("02.01 15:04"), label)
		}
		keyboard = append(keyboard, row(btn(label, arg(dataDetails, r.ID))))
	}
	keyboard = append(keyboard, backRow())
	return Response{Text: sb.String(), Keyboard: keyboard}
}

func (p *Processor) detailsMenu(r *models.Reserve, admin bool) Response {
	keyboard := [][]Button{row(btn("❌ Отменить", arg(dataCancel, r.ID)))}
	if admin {
		keyboard = append(keyboard, row(btn("🔔 Напомнить", arg(dataNotify, r.ID))))
	}
	keyboard = append(keyboard, backRow())
	return Response{Text: r.Summary(), Keyboard: keyboard}
}
