package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"zebra-label/internal/config"
	"zebra-label/internal/job"
	"zebra-label/internal/label"
	"zebra-label/internal/logging"
	"zebra-label/internal/preview"
	"zebra-label/internal/printer"
)

const (
	AppVersion = "1.0.0"
	AppName    = "Zebra Label"
)

var (
	connectedColor    = color.NRGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}
	disconnectedColor = color.NRGBA{R: 0xc6, G: 0x28, B: 0x28, A: 0xff}
)

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	logger  *zap.Logger

	manager      *printer.Manager
	orchestrator *job.Orchestrator
	queue        *job.Queue
	encoder      *label.Encoder
	renderer     *preview.Renderer

	// Settings
	size        label.Size
	previewLang label.Language
	copies      int

	// Widgets that need updating
	bannerRect   *canvas.Rectangle
	bannerText   *canvas.Text
	statusLabel  *widget.Label
	printBtn     *widget.Button
	sampleBtn    *widget.Button
	copiesEntry  *widget.Entry
	previewImg   *canvas.Image
	barcodeEntry *widget.Entry
	typeEntry    *widget.Entry
	nameEntry    *widget.Entry
	unitEntry    *widget.Entry
	priceEntry   *widget.Entry
}

func main() {
	configFile := flag.String("config", "", "path to zebra-label.yaml")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	transport, err := cfg.NewTransport(logger)
	if err != nil {
		logger.Fatal("failed to create transport", zap.Error(err))
	}

	encoder := label.NewEncoder(cfg.Label)
	renderer, err := preview.NewRenderer(encoder, preview.DefaultOptions())
	if err != nil {
		logger.Fatal("failed to load preview font", zap.Error(err))
	}

	a := app.New()
	w := a.NewWindow(fmt.Sprintf("%s v%s", AppName, AppVersion))
	w.Resize(fyne.NewSize(720, 520))

	queue := job.NewQueue(16)
	manager := printer.NewManager(transport, cfg.ManagerOptions(logger))

	zebraApp := &App{
		fyneApp:  a,
		window:   w,
		logger:   logger,
		manager:  manager,
		queue:    queue,
		encoder:  encoder,
		renderer: renderer,
		orchestrator: job.NewOrchestrator(manager, printer.NewDetector(logger), encoder, job.Options{
			Policy:     cfg.DetectPolicy,
			Dispatcher: queue,
			Logger:     logger,
		}),
		size:        label.TwoByOne,
		previewLang: label.ZPL,
		copies:      1,
	}

	w.SetMainMenu(zebraApp.buildMenu())
	w.SetContent(zebraApp.buildUI())

	// The listener runs on whatever goroutine changed the state; hop onto
	// the UI queue before touching widgets.
	manager.SetListener(func(state printer.State, acc printer.Accessory) {
		queue.Dispatch(func() { zebraApp.showConnection(state, acc) })
	})
	manager.Start(context.Background())
	zebraApp.showConnection(manager.State(), manager.Accessory())
	zebraApp.updatePreview()

	w.SetOnClosed(func() {
		zebraApp.cleanup()
	})
	w.ShowAndRun()
}

func (a *App) buildMenu() *fyne.MainMenu {
	aboutItem := fyne.NewMenuItem("About", func() {
		a.showAboutDialog()
	})

	helpMenu := fyne.NewMenu("Help", aboutItem)

	return fyne.NewMainMenu(helpMenu)
}

func (a *App) showAboutDialog() {
	content := container.NewVBox(
		widget.NewLabelWithStyle(AppName, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		widget.NewLabel(fmt.Sprintf("Version %s", AppVersion)),
		widget.NewSeparator(),
		widget.NewLabel("Prints product labels on Zebra mobile printers (ZPL and CPCL)."),
		widget.NewLabel(""),
		widget.NewLabel("Built with Fyne and Go"),
	)

	dialog.ShowCustom("About", "Close", content, a.window)
}

// cleanup waits for a running job and closes the printer connection
func (a *App) cleanup() {
	a.orchestrator.Wait()
	if err := a.manager.Shutdown(); err != nil {
		a.logger.Warn("failed to close printer connection", zap.Error(err))
	}
	a.queue.Close()
}

func (a *App) buildUI() fyne.CanvasObject {
	// Connection banner
	a.bannerRect = canvas.NewRectangle(disconnectedColor)
	a.bannerRect.SetMinSize(fyne.NewSize(0, 32))
	a.bannerText = canvas.NewText("Printer is not connected", color.White)
	a.bannerText.Alignment = fyne.TextAlignCenter
	a.bannerText.TextStyle = fyne.TextStyle{Bold: true}
	banner := container.NewStack(a.bannerRect, container.NewCenter(a.bannerText))

	a.statusLabel = widget.NewLabel("Ready")

	// Record fields
	newEntry := func(placeholder, value string) *widget.Entry {
		e := widget.NewEntry()
		e.SetPlaceHolder(placeholder)
		e.SetText(value)
		e.OnChanged = func(string) { a.updatePreview() }
		return e
	}
	a.barcodeEntry = newEntry("Barcode", label.SampleRecord.Barcode)
	a.typeEntry = newEntry("Product type", label.SampleRecord.ProductType)
	a.nameEntry = newEntry("Product name", label.SampleRecord.ProductName)
	a.unitEntry = newEntry("Unit of measure", label.SampleRecord.UnitOfMeasure)
	a.priceEntry = newEntry("Price", label.SampleRecord.FormattedPrice)

	recordForm := widget.NewForm(
		widget.NewFormItem("Barcode", a.barcodeEntry),
		widget.NewFormItem("Type", a.typeEntry),
		widget.NewFormItem("Name", a.nameEntry),
		widget.NewFormItem("Unit", a.unitEntry),
		widget.NewFormItem("Price", a.priceEntry),
	)

	// Print settings
	sizes := label.SupportedSizes()
	sizeOptions := make([]string, len(sizes))
	for i, s := range sizes {
		sizeOptions[i] = s.String()
	}
	sizeSelect := widget.NewSelect(sizeOptions, func(s string) {
		size, err := label.ParseSize(s)
		if err != nil {
			return
		}
		a.size = size
		a.updatePreview()
	})
	sizeSelect.SetSelected(a.size.String())

	langSelect := widget.NewSelect([]string{label.ZPL.String(), label.CPCL.String()}, func(s string) {
		lang, err := label.ParseLanguage(s)
		if err != nil {
			return
		}
		a.previewLang = lang
		a.updatePreview()
	})
	langSelect.SetSelected(a.previewLang.String())

	a.copiesEntry = widget.NewEntry()
	a.copiesEntry.SetText(strconv.Itoa(a.copies))
	a.copiesEntry.OnChanged = func(s string) {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			a.copies = n
		}
	}
	minusBtn := widget.NewButton("-", func() {
		if a.copies > 1 {
			a.setCopies(a.copies - 1)
		}
	})
	plusBtn := widget.NewButton("+", func() {
		a.setCopies(a.copies + 1)
	})
	copiesRow := container.NewBorder(nil, nil, minusBtn, plusBtn, a.copiesEntry)

	a.printBtn = widget.NewButton("Print", func() {
		a.print(a.record())
	})
	a.printBtn.Importance = widget.HighImportance

	a.sampleBtn = widget.NewButton("Print Sample", func() {
		a.print(label.SampleRecord)
	})

	// Preview
	a.previewImg = canvas.NewImageFromImage(nil)
	a.previewImg.SetMinSize(fyne.NewSize(300, 180))
	a.previewImg.FillMode = canvas.ImageFillContain

	leftPanel := container.NewVBox(
		recordForm,
		widget.NewSeparator(),
		widget.NewLabel("Label Size"),
		sizeSelect,
		widget.NewLabel("Copies"),
		copiesRow,
		widget.NewSeparator(),
		a.printBtn,
		a.sampleBtn,
	)

	rightPanel := container.NewBorder(
		container.NewHBox(widget.NewLabel("Preview as"), langSelect),
		nil, nil, nil,
		container.NewCenter(a.previewImg),
	)

	content := container.NewHSplit(leftPanel, rightPanel)
	content.SetOffset(0.45)

	return container.NewBorder(
		banner,
		container.NewHBox(a.statusLabel),
		nil, nil,
		content,
	)
}

func (a *App) setCopies(n int) {
	a.copies = n
	a.copiesEntry.SetText(strconv.Itoa(n))
}

func (a *App) record() label.Record {
	return label.Record{
		Barcode:        a.barcodeEntry.Text,
		ProductType:    a.typeEntry.Text,
		ProductName:    a.nameEntry.Text,
		UnitOfMeasure:  a.unitEntry.Text,
		FormattedPrice: a.priceEntry.Text,
	}
}

func (a *App) showConnection(state printer.State, acc printer.Accessory) {
	switch state {
	case printer.Open:
		a.bannerRect.FillColor = connectedColor
		a.bannerText.Text = "Printer is connected"
		a.statusLabel.SetText(fmt.Sprintf("Connected to %s", acc))
	case printer.Connecting:
		a.bannerRect.FillColor = disconnectedColor
		a.bannerText.Text = "Printer is not connected"
		a.statusLabel.SetText(fmt.Sprintf("Found %s", acc))
	default:
		a.bannerRect.FillColor = disconnectedColor
		a.bannerText.Text = "Printer is not connected"
		a.statusLabel.SetText("Disconnected")
	}
	a.bannerRect.Refresh()
	a.bannerText.Refresh()
}

func (a *App) updatePreview() {
	if a.previewImg == nil {
		return
	}

	img, err := a.renderer.Render(a.record(), a.size, a.previewLang)
	if err != nil {
		a.statusLabel.SetText(fmt.Sprintf("Preview: %v", err))
		return
	}

	a.previewImg.Image = preview.Thermal(img, 128)
	a.previewImg.Refresh()
}

func (a *App) setBusy(busy bool) {
	if busy {
		a.printBtn.Disable()
		a.sampleBtn.Disable()
		return
	}
	a.printBtn.Enable()
	a.sampleBtn.Enable()
}

func (a *App) print(rec label.Record) {
	j := job.New(rec, a.size, a.copies)

	listener := job.ListenerFuncs{
		Success: func(j job.Job) {
			a.setBusy(false)
			a.statusLabel.SetText(fmt.Sprintf("Printed %d label(s)", j.Copies))
		},
		Failure: func(_ job.Job, f *job.Failure) {
			a.setBusy(false)
			a.statusLabel.SetText(fmt.Sprintf("Print error: %v", f))
			dialog.ShowError(f, a.window)
		},
	}

	a.setBusy(true)
	a.statusLabel.SetText("Printing...")

	if err := a.orchestrator.Submit(j, listener); err != nil {
		if errors.Is(err, job.ErrBusy) {
			a.statusLabel.SetText("Printer is busy")
			return
		}
		a.setBusy(false)
		dialog.ShowError(err, a.window)
	}
}
