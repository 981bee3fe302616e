package peinfo

import (
	"debug/pe"
	"fmt"
	"strconv"
)

var subsystemNames = map[uint16]string{
	pe.IMAGE_SUBSYSTEM_UNKNOWN:                  "IMAGE_SUBSYSTEM_UNKNOWN",
	pe.IMAGE_SUBSYSTEM_NATIVE:                   "IMAGE_SUBSYSTEM_NATIVE",
	pe.IMAGE_SUBSYSTEM_WINDOWS_GUI:              "IMAGE_SUBSYSTEM_WINDOWS_GUI",
	pe.IMAGE_SUBSYSTEM_WINDOWS_CUI:              "IMAGE_SUBSYSTEM_WINDOWS_CUI",
	pe.IMAGE_SUBSYSTEM_OS2_CUI:                  "IMAGE_SUBSYSTEM_OS2_CUI",
	pe.IMAGE_SUBSYSTEM_POSIX_CUI:                "IMAGE_SUBSYSTEM_POSIX_CUI",
	pe.IMAGE_SUBSYSTEM_NATIVE_WINDOWS:           "IMAGE_SUBSYSTEM_NATIVE_WINDOWS",
	pe.IMAGE_SUBSYSTEM_WINDOWS_CE_GUI:           "IMAGE_SUBSYSTEM_WINDOWS_CE_GUI",
	pe.IMAGE_SUBSYSTEM_EFI_APPLICATION:          "IMAGE_SUBSYSTEM_EFI_APPLICATION",
	pe.IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER:  "IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER",
	pe.IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER:       "IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER",
	pe.IMAGE_SUBSYSTEM_EFI_ROM:                  "IMAGE_SUBSYSTEM_EFI_ROM",
	pe.IMAGE_SUBSYSTEM_XBOX:                     "IMAGE_SUBSYSTEM_XBOX",
	pe.IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION: "IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION",
}

// SubsystemName returns the IMAGE_SUBSYSTEM_* name of a subsystem value.
func SubsystemName(subsystem uint16) string {
	if name, ok := subsystemNames[subsystem]; ok {
		return name
	}
	return fmt.Sprintf("IMAGE_SUBSYSTEM_%d", subsystem)
}

var machineNames = map[uint16]string{
	pe.IMAGE_FILE_MACHINE_UNKNOWN: "UNKNOWN",
	pe.IMAGE_FILE_MACHINE_I386:    "I386",
	pe.IMAGE_FILE_MACHINE_AMD64:   "AMD64",
	pe.IMAGE_FILE_MACHINE_ARM:     "ARM",
	pe.IMAGE_FILE_MACHINE_ARMNT:   "ARMNT",
	pe.IMAGE_FILE_MACHINE_ARM64:   "ARM64",
	pe.IMAGE_FILE_MACHINE_IA64:    "IA64",
	pe.IMAGE_FILE_MACHINE_EBC:     "EBC",
	pe.IMAGE_FILE_MACHINE_THUMB:   "THUMB",
	pe.IMAGE_FILE_MACHINE_POWERPC: "POWERPC",
}

// MachineName returns a short label for the machine field of the file header.
func MachineName(machine uint16) string {
	if name, ok := machineNames[machine]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", machine)
}

var resourceTypeNames = map[uint16]string{
	1:  "RT_CURSOR",
	2:  "RT_BITMAP",
	3:  "RT_ICON",
	4:  "RT_MENU",
	5:  "RT_DIALOG",
	6:  "RT_STRING",
	7:  "RT_FONTDIR",
	8:  "RT_FONT",
	9:  "RT_ACCELERATOR",
	10: "RT_RCDATA",
	11: "RT_MESSAGETABLE",
	12: "RT_GROUP_CURSOR",
	14: "RT_GROUP_ICON",
	16: "RT_VERSION",
	17: "RT_DLGINCLUDE",
	19: "RT_PLUGPLAY",
	20: "RT_VXD",
	21: "RT_ANICURSOR",
	22: "RT_ANIICON",
	23: "RT_HTML",
	24: "RT_MANIFEST",
}

// ResourceTypeName returns the RT_* label of a numeric resource type or its
// decimal value if the type is unknown.
func ResourceTypeName(id uint16) string {
	if name, ok := resourceTypeNames[id]; ok {
		return name
	}
	return strconv.Itoa(int(id))
}
